package printer

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/printbridge/peripage-usb-server/adapter"
)

// Transfer timeouts, matching the vendor driver's behavior: short for
// plain commands, a few seconds for query replies, generous for image
// payloads.
const (
	commandTimeout = time.Second
	queryTimeout   = 3 * time.Second
	imageTimeout   = 30 * time.Second
)

// maxImageHeight is the largest row count a single image transfer can
// carry; the wire header stores the height in one byte.
const maxImageHeight = 255

// Thermal throttling defaults. Printing tall solid-black regions in one
// transfer can overheat the print head, so chunked printing splits the
// job into short bands with a pause in between. These values come from
// vendor driver captures.
const (
	DefaultChunkRows  = 24
	DefaultChunkDelay = 50 * time.Millisecond
)

// trailingFeedRows is the blank-band height appended by Print when the
// caller asks for a trailing feed.
const trailingFeedRows = 3 * DefaultChunkRows

// Printer exchanges the A6 command protocol over one transport. Each
// operation claims the device interface, performs its transfers, and
// releases the claim again, so a Printer holds no device reservation
// between calls. Not safe for concurrent use; run one Printer per
// device, one goroutine per Printer.
type Printer struct {
	adapter    adapter.Adapter
	logger     *log.Logger
	chunkRows  int
	chunkDelay time.Duration
}

// Option configures a Printer.
type Option func(*Printer)

// WithLogger routes diagnostics to a custom logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Printer) { p.logger = logger }
}

// WithChunkRows overrides the band height used by PrintImageChunked.
// Values below 1 are ignored.
func WithChunkRows(rows int) Option {
	return func(p *Printer) {
		if rows >= 1 {
			p.chunkRows = rows
		}
	}
}

// WithChunkDelay overrides the pause between chunked-print bands.
func WithChunkDelay(d time.Duration) Option {
	return func(p *Printer) {
		if d >= 0 {
			p.chunkDelay = d
		}
	}
}

// New creates a Printer on top of an opened transport. The Printer does
// not take ownership of the adapter's lifetime; close it separately.
func New(a adapter.Adapter, opts ...Option) *Printer {
	p := &Printer{
		adapter:    a,
		logger:     log.New(os.Stderr, "[PRINTER] ", log.LstdFlags|log.Lmsgprefix),
		chunkRows:  DefaultChunkRows,
		chunkDelay: DefaultChunkDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// withClaim runs fn with the device interface claimed. The claim is
// released even when fn fails; a release failure is logged but never
// masks fn's result.
func (p *Printer) withClaim(fn func() error) error {
	if err := p.adapter.Claim(); err != nil {
		return err
	}
	err := fn()
	if rerr := p.adapter.Release(); rerr != nil {
		p.logger.Printf("failed to release interface: %v", rerr)
	}
	return err
}

// Reset initializes the printer. Call it once after opening, before the
// first print; the hardware accepts prints without it but renders them
// unpredictably. Any immediate response is drained and discarded.
func (p *Printer) Reset() error {
	return p.withClaim(func() error {
		if err := p.adapter.Send(cmdReset, commandTimeout); err != nil {
			return err
		}
		var buf [1024]byte
		if _, err := p.adapter.Recv(buf[:], commandTimeout); err != nil {
			p.logger.Printf("ignoring reset response error: %v", err)
		}
		return nil
	})
}

// query sends a 4-byte command and returns the raw reply.
func (p *Printer) query(op string, cmd []byte) ([]byte, error) {
	buf := make([]byte, 1024)
	var n int
	err := p.withClaim(func() error {
		if err := p.adapter.Send(cmd, commandTimeout); err != nil {
			return err
		}
		var err error
		n, err = p.adapter.Recv(buf, queryTimeout)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf[:n], nil
}

func (p *Printer) queryString(op string, cmd []byte) (string, error) {
	reply, err := p.query(op, cmd)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(reply), string(utf8.RuneError)), nil
}

// IP returns the device's reported IP address string.
func (p *Printer) IP() (string, error) {
	return p.queryString("IP query", cmdGetIP)
}

// FirmwareVersion returns the firmware version string.
func (p *Printer) FirmwareVersion() (string, error) {
	return p.queryString("firmware query", cmdGetFirmware)
}

// Serial returns the device serial number string.
func (p *Printer) Serial() (string, error) {
	return p.queryString("serial query", cmdGetSerial)
}

// HardwareVersion returns the hardware revision string.
func (p *Printer) HardwareVersion() (string, error) {
	return p.queryString("hardware query", cmdGetHardware)
}

// DeviceName returns the device's advertised name.
func (p *Printer) DeviceName() (string, error) {
	return p.queryString("name query", cmdGetName)
}

// MAC returns the printer's Bluetooth hardware address. The device
// echoes the address twice; only the first six bytes are meaningful.
func (p *Printer) MAC() (MAC, error) {
	reply, err := p.query("MAC query", cmdGetMAC)
	if err != nil {
		return MAC{}, err
	}
	if len(reply) < 6 {
		return MAC{}, &ResponseError{Op: "MAC query", Detail: fmt.Sprintf("got %d bytes, need at least 6", len(reply))}
	}
	var m MAC
	copy(m[:], reply[:6])
	return m, nil
}

// Battery returns the battery charge percentage.
func (p *Printer) Battery() (uint8, error) {
	reply, err := p.query("battery query", cmdGetBattery)
	if err != nil {
		return 0, err
	}
	if len(reply) != 2 {
		return 0, &ResponseError{Op: "battery query", Detail: fmt.Sprintf("got %d bytes, expected 2", len(reply))}
	}
	return reply[1], nil
}

// SetConcentration sets the print head darkness. Only levels 0, 1 and 2
// exist.
func (p *Printer) SetConcentration(level byte) error {
	if level > 2 {
		return fmt.Errorf("%w: concentration %d out of range 0..2", ErrInvalidArgument, level)
	}
	return p.withClaim(func() error {
		return p.adapter.Send(concentrationCmd(level), commandTimeout)
	})
}

// PrintText prints plain text using the printer's built-in font. Input
// is filtered to printable ASCII plus line feeds; everything else is
// dropped, no escape sequences are interpreted.
func (p *Printer) PrintText(text string) error {
	return p.withClaim(func() error {
		return p.adapter.Send(filterText(text), commandTimeout)
	})
}

func filterText(text string) []byte {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		b := text[i]
		if b == '\n' || (b >= 0x20 && b <= 0x7e) {
			out = append(out, b)
		}
	}
	return out
}

// PrintImage sends one packed 1-bit image of the given pixel width.
// The width must be a non-zero multiple of 8, the derived height must
// fit the wire header's single byte, and the buffer must hold whole
// rows only. Callers printing more than 255 rows, or anything tall and
// dark, should use PrintImageChunked instead.
func (p *Printer) PrintImage(pixels []byte, width int) error {
	rowBytes, height, err := imageGeometry(pixels, width)
	if err != nil {
		return err
	}

	packet := make([]byte, 0, 8+len(pixels))
	packet = append(packet, imageHeader(rowBytes, height)...)
	packet = append(packet, pixels...)

	return p.withClaim(func() error {
		if err := p.adapter.Send(packet, imageTimeout); err != nil {
			return err
		}
		return p.adapter.Send(cmdAck, commandTimeout)
	})
}

func imageGeometry(pixels []byte, width int) (rowBytes, height int, err error) {
	if width == 0 || width%8 != 0 {
		return 0, 0, fmt.Errorf("%w: width %d must be a non-zero multiple of 8", ErrInvalidArgument, width)
	}
	rowBytes = width / 8
	height = len(pixels) / rowBytes
	if height > maxImageHeight {
		return 0, 0, fmt.Errorf("%w: image height %d exceeds %d rows, use chunked printing", ErrInvalidArgument, height, maxImageHeight)
	}
	if len(pixels) != rowBytes*height {
		return 0, 0, fmt.Errorf("%w: pixel buffer is %d bytes, not a whole number of %d-byte rows", ErrInvalidArgument, len(pixels), rowBytes)
	}
	return rowBytes, height, nil
}

// PrintImageChunked prints an image of unbounded height by splitting it
// into short bands with a pause between them. The pause lets the print
// head cool down; bypassing it on large black areas damages hardware.
func (p *Printer) PrintImageChunked(pixels []byte, width int) error {
	if width == 0 || width%8 != 0 {
		return fmt.Errorf("%w: width %d must be a non-zero multiple of 8", ErrInvalidArgument, width)
	}
	rowBytes := width / 8
	if len(pixels)%rowBytes != 0 {
		return fmt.Errorf("%w: pixel buffer is %d bytes, not a whole number of %d-byte rows", ErrInvalidArgument, len(pixels), rowBytes)
	}

	chunks := NewChunker(pixels, rowBytes, p.chunkRows)
	first := true
	for chunk, ok := chunks.Next(); ok; chunk, ok = chunks.Next() {
		if !first {
			time.Sleep(p.chunkDelay)
		}
		first = false
		if err := p.PrintImage(chunk, width); err != nil {
			return err
		}
	}
	return nil
}

// Feed advances the paper by the given number of rows.
func (p *Printer) Feed(rows byte) error {
	return p.withClaim(func() error {
		return p.adapter.Send(feedCmd(rows), commandTimeout)
	})
}

// Print sends a whole document as one combined packet, banded the way
// the Windows vendor driver does it. With trailingFeed an extra blank
// band is appended so the printed area clears the tear-off edge.
func (p *Printer) Print(doc *Document, trailingFeed bool) error {
	packet := buildDocumentPacket(doc, trailingFeed)
	return p.withClaim(func() error {
		if err := p.adapter.Send(packet, imageTimeout); err != nil {
			return err
		}
		return p.adapter.Send(cmdAck, commandTimeout)
	})
}

func buildDocumentPacket(doc *Document, trailingFeed bool) []byte {
	const bandRows = DefaultChunkRows
	bandSize := BytesPerRow * bandRows

	bands := (doc.Height() + bandRows - 1) / bandRows
	size := len(packetPreamble) + bands*(len(bandHeader)+2+bandSize)
	if trailingFeed {
		size += len(bandHeader) + 2 + BytesPerRow*trailingFeedRows
	}

	packet := make([]byte, 0, size)
	packet = append(packet, packetPreamble...)

	chunks := NewChunker(doc.Pixels(), BytesPerRow, bandRows)
	for chunk, ok := chunks.Next(); ok; chunk, ok = chunks.Next() {
		packet = append(packet, bandHeader...)
		packet = binary.LittleEndian.AppendUint16(packet, bandRows)
		packet = append(packet, chunk...)
		// The height field always says a full band; a short final band
		// is padded with white.
		packet = append(packet, make([]byte, bandSize-len(chunk))...)
	}

	if trailingFeed {
		packet = append(packet, bandHeader...)
		packet = binary.LittleEndian.AppendUint16(packet, trailingFeedRows)
		packet = append(packet, make([]byte, BytesPerRow*trailingFeedRows)...)
	}
	return packet
}
