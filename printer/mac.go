package printer

import "fmt"

// MAC is the printer's Bluetooth hardware address, reported over USB.
type MAC [6]byte

// String formats the address as colon-separated hex.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}
