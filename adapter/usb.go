package adapter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/gousb"
)

// USB identification of the PeriPage A6.
const (
	VendorID  gousb.ID = 0x09c5
	ProductID gousb.ID = 0x0200
)

// Expected interface descriptor values.
// Reference: http://www.usb.org/developers/defined_class
const (
	ifaceClassPrinter    = 0x07
	ifaceSubClassPrinter = 0x01
	ifaceProtocolBidir   = 0x02
)

// Expected fixed endpoint addresses, observed on every known A6 unit.
const (
	endpointInAddr  = 0x81 // IN (0x80) + 1
	endpointOutAddr = 0x02 // OUT (0x00) + 2
)

// USBAdapter drives the printer over a pair of validated bulk endpoints.
// The interface is claimed per operation via Claim/Release, not for the
// lifetime of the adapter, so other clients can reach the device between
// operations.
type USBAdapter struct {
	ctx    *gousb.Context // owned only when created through Find
	device *gousb.Device
	cfg    *gousb.Config
	inNum  int
	outNum int
	logger *log.Logger

	mu    sync.Mutex
	iface *gousb.Interface
	in    *gousb.InEndpoint
	out   *gousb.OutEndpoint
}

// List returns all attached devices matching the PeriPage A6 vendor and
// product IDs. Devices whose descriptors cannot be read are skipped.
// The caller owns the returned devices and must close them.
func List(ctx *gousb.Context) ([]*gousb.Device, error) {
	return ListWithLogger(ctx, defaultLogger())
}

// ListWithLogger is List with a custom diagnostics logger.
func ListWithLogger(ctx *gousb.Context, logger *log.Logger) ([]*gousb.Device, error) {
	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == VendorID && desc.Product == ProductID
	})
	if err != nil {
		// OpenDevices still returns the devices it could read; a
		// descriptor failure on an unrelated device is not fatal.
		logger.Printf("skipping unreadable devices during enumeration: %v", err)
	}
	return devices, nil
}

// Find enumerates the bus and opens the first PeriPage A6 it finds.
func Find() (*USBAdapter, error) {
	return FindWithLogger(defaultLogger())
}

// FindWithLogger is Find with a custom diagnostics logger.
func FindWithLogger(logger *log.Logger) (*USBAdapter, error) {
	ctx := gousb.NewContext()

	devices, err := ListWithLogger(ctx, logger)
	if err != nil {
		ctx.Close()
		return nil, err
	}
	if len(devices) == 0 {
		ctx.Close()
		return nil, ErrNotFound
	}

	// One printer at a time; close the extras.
	for _, dev := range devices[1:] {
		dev.Close()
	}

	a, err := OpenWithLogger(devices[0], logger)
	if err != nil {
		devices[0].Close()
		ctx.Close()
		return nil, err
	}
	a.ctx = ctx
	return a, nil
}

// Open validates an already-opened device as a PeriPage A6 and binds its
// bulk endpoint pair. The device is not claimed; every printer operation
// claims and releases the interface around its own transfers.
func Open(dev *gousb.Device) (*USBAdapter, error) {
	return OpenWithLogger(dev, defaultLogger())
}

// OpenWithLogger is Open with a custom diagnostics logger.
func OpenWithLogger(dev *gousb.Device, logger *log.Logger) (*USBAdapter, error) {
	// Steal the device from the kernel driver when possible. Best-effort:
	// some platforms do not support detaching at all.
	if runtime.GOOS == "linux" {
		if err := dev.SetAutoDetach(true); err != nil {
			logger.Printf("cannot enable kernel driver auto-detach: %v", err)
		}
	}

	logDescriptorStrings(dev, logger)

	cfgDesc, inNum, outNum, err := validateTopology(dev.Desc)
	if err != nil {
		return nil, err
	}

	cfg, err := dev.Config(cfgDesc.Number)
	if err != nil {
		return nil, fmt.Errorf("cannot select configuration %d: %w", cfgDesc.Number, err)
	}

	return &USBAdapter{
		device: dev,
		cfg:    cfg,
		inNum:  inNum,
		outNum: outNum,
		logger: logger,
	}, nil
}

// logDescriptorStrings reads the manufacturer/product/serial strings for
// diagnostics. All failures are non-fatal and simply omitted.
func logDescriptorStrings(dev *gousb.Device, logger *log.Logger) {
	if s, err := dev.Manufacturer(); err == nil {
		logger.Printf("USB vendor: %s", s)
	}
	if s, err := dev.Product(); err == nil {
		logger.Printf("USB product: %s", s)
	}
	if s, err := dev.SerialNumber(); err == nil {
		logger.Printf("USB serial: %s", s)
	}
}

// validateTopology checks the descriptor tree against the known shape of
// the A6: one configuration, one printer-class bidirectional interface,
// and exactly one bulk endpoint per direction at the fixed addresses.
// A mismatch means wrong or unsupported hardware, never a panic.
func validateTopology(desc *gousb.DeviceDesc) (*gousb.ConfigDesc, int, int, error) {
	if len(desc.Configs) != 1 {
		return nil, 0, 0, &ValidationError{Field: "configuration count", Want: 1, Got: len(desc.Configs)}
	}
	var cfg gousb.ConfigDesc
	for _, c := range desc.Configs {
		cfg = c
	}

	if len(cfg.Interfaces) != 1 {
		return nil, 0, 0, &ValidationError{Field: "interface count", Want: 1, Got: len(cfg.Interfaces)}
	}
	intf := cfg.Interfaces[0]
	if len(intf.AltSettings) == 0 {
		return nil, 0, 0, &ValidationError{Field: "alternate settings", Want: 1, Got: 0}
	}
	alt := intf.AltSettings[0]

	if alt.Class != ifaceClassPrinter {
		return nil, 0, 0, &ValidationError{Field: "interface class", Want: ifaceClassPrinter, Got: int(alt.Class)}
	}
	if alt.SubClass != ifaceSubClassPrinter {
		return nil, 0, 0, &ValidationError{Field: "interface subclass", Want: ifaceSubClassPrinter, Got: int(alt.SubClass)}
	}
	if alt.Protocol != ifaceProtocolBidir {
		return nil, 0, 0, &ValidationError{Field: "interface protocol", Want: ifaceProtocolBidir, Got: int(alt.Protocol)}
	}
	if len(alt.Endpoints) != 2 {
		return nil, 0, 0, &ValidationError{Field: "endpoint count", Want: 2, Got: len(alt.Endpoints)}
	}

	var in, out *gousb.EndpointDesc
	for _, ep := range alt.Endpoints {
		ep := ep
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			in = &ep
		case gousb.EndpointDirectionOut:
			out = &ep
		}
	}
	if in == nil || out == nil {
		return nil, 0, 0, &ValidationError{Field: "endpoint directions", Want: "one IN and one OUT", Got: "same direction twice"}
	}
	if in.TransferType != gousb.TransferTypeBulk {
		return nil, 0, 0, &ValidationError{Field: "IN endpoint transfer type", Want: gousb.TransferTypeBulk, Got: in.TransferType}
	}
	if out.TransferType != gousb.TransferTypeBulk {
		return nil, 0, 0, &ValidationError{Field: "OUT endpoint transfer type", Want: gousb.TransferTypeBulk, Got: out.TransferType}
	}
	if in.Address != endpointInAddr {
		return nil, 0, 0, &ValidationError{Field: "IN endpoint address", Want: endpointInAddr, Got: int(in.Address)}
	}
	if out.Address != endpointOutAddr {
		return nil, 0, 0, &ValidationError{Field: "OUT endpoint address", Want: endpointOutAddr, Got: int(out.Address)}
	}

	return &cfg, in.Number, out.Number, nil
}

// Claim reserves interface 0 and resolves the bulk endpoint pair.
func (a *USBAdapter) Claim() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.iface != nil {
		return errors.New("interface already claimed")
	}

	iface, err := a.cfg.Interface(0, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrClaim, err)
	}
	in, err := iface.InEndpoint(a.inNum)
	if err != nil {
		iface.Close()
		return fmt.Errorf("cannot open IN endpoint %d: %w", a.inNum, err)
	}
	out, err := iface.OutEndpoint(a.outNum)
	if err != nil {
		iface.Close()
		return fmt.Errorf("cannot open OUT endpoint %d: %w", a.outNum, err)
	}

	a.iface, a.in, a.out = iface, in, out
	return nil
}

// Release gives up the interface reservation taken by Claim.
func (a *USBAdapter) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.iface == nil {
		return nil
	}
	a.iface.Close()
	a.iface, a.in, a.out = nil, nil, nil
	return nil
}

// Send performs one bulk OUT transfer of the whole buffer.
func (a *USBAdapter) Send(data []byte, timeout time.Duration) error {
	a.mu.Lock()
	out := a.out
	a.mu.Unlock()

	if out == nil {
		return errors.New("interface not claimed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := out.WriteContext(ctx, data)
	if err != nil {
		return fmt.Errorf("bulk write failed after %d of %d bytes: %w", n, len(data), err)
	}
	if n != len(data) {
		return fmt.Errorf("short bulk write: %d of %d bytes", n, len(data))
	}
	return nil
}

// Recv performs one bulk IN transfer into buf. A timeout that interrupts
// a partially-filled read returns the short count without error; a
// timeout with nothing read is a transport error.
func (a *USBAdapter) Recv(buf []byte, timeout time.Duration) (int, error) {
	a.mu.Lock()
	in := a.in
	a.mu.Unlock()

	if in == nil {
		return 0, errors.New("interface not claimed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := in.ReadContext(ctx, buf)
	if err != nil {
		if n > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return n, nil
		}
		return n, fmt.Errorf("bulk read failed: %w", err)
	}
	return n, nil
}

// Close releases any held claim and closes the device. The libusb
// context is closed only when this adapter created it.
func (a *USBAdapter) Close() error {
	if err := a.Release(); err != nil {
		a.logger.Printf("release on close failed: %v", err)
	}

	var errs []error
	if a.cfg != nil {
		if err := a.cfg.Close(); err != nil {
			errs = append(errs, err)
		}
		a.cfg = nil
	}
	if a.device != nil {
		if err := a.device.Close(); err != nil {
			errs = append(errs, err)
		}
		a.device = nil
	}
	if a.ctx != nil {
		if err := a.ctx.Close(); err != nil {
			errs = append(errs, err)
		}
		a.ctx = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "[USB] ", log.LstdFlags|log.Lmsgprefix)
}
