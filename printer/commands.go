package printer

// Wire commands for the PeriPage A6, reverse-engineered from vendor
// driver USB captures.
var (
	// cmdReset initializes the printer; sent before any print job.
	cmdReset = []byte{0x10, 0xff, 0xfe, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	cmdGetIP       = []byte{0x10, 0xff, 0x20, 0xf0}
	cmdGetFirmware = []byte{0x10, 0xff, 0x20, 0xf1}
	cmdGetSerial   = []byte{0x10, 0xff, 0x20, 0xf2}
	cmdGetHardware = []byte{0x10, 0xff, 0x30, 0x10}
	cmdGetName     = []byte{0x10, 0xff, 0x30, 0x11}
	cmdGetMAC      = []byte{0x10, 0xff, 0x30, 0x12}
	cmdGetBattery  = []byte{0x10, 0xff, 0x50, 0xf1}

	// cmdAck follows every image transfer. The vendor driver always sends
	// it; the hardware misbehaves without it. Its meaning is unknown.
	cmdAck = []byte{0x10, 0xff, 0xfe, 0x45}

	// packetPreamble opens a combined multi-band document packet.
	packetPreamble = []byte{0x10, 0xff, 0xfe, 0x01, 0x1b, 0x40, 0x00, 0x1b, 0x4a, 0x60}

	// bandHeader precedes each 48-byte-row band in a combined packet,
	// followed by a little-endian band height.
	bandHeader = []byte{0x1d, 0x76, 0x30, 0x00, 0x30, 0x00}
)

func concentrationCmd(level byte) []byte {
	return []byte{0x10, 0xff, 0x10, 0x00, level}
}

func feedCmd(rows byte) []byte {
	return []byte{0x1b, 0x4a, rows}
}

// imageHeader builds the single-image header: big-endian row byte count
// over two bytes, then a one-byte height in a legacy two-byte slot. The
// asymmetry with the combined packet's little-endian band height mirrors
// captured traffic exactly.
func imageHeader(rowBytes, height int) []byte {
	return []byte{0x1d, 0x76, 0x30, byte(rowBytes >> 8), byte(rowBytes), 0x00, byte(height), 0x00}
}
