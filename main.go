package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/printbridge/peripage-usb-server/adapter"
	"github.com/printbridge/peripage-usb-server/printer"
	"github.com/printbridge/peripage-usb-server/render"
	"github.com/printbridge/peripage-usb-server/server"
)

// feedRows is how far the paper advances past the print head so the
// output clears the tear-off edge.
const feedRows = 0x60

var (
	device        string
	copies        int
	feed          bool
	invert        bool
	dither        bool
	rotate        int
	threshold     uint8
	textMode      bool
	rawMode       bool
	fontFile      string
	fontSize      float64
	concentration int
	showInfo      bool
	serve         bool
)

func main() {
	pflag.StringVarP(&device, "device", "d", "", "print through a raw device node instead of libusb")
	pflag.IntVarP(&copies, "copies", "n", 1, "number of copies")
	pflag.BoolVarP(&feed, "feed", "f", false, "feed paper past the tear-off edge after printing")
	pflag.BoolVarP(&invert, "invert", "i", false, "invert black and white")
	pflag.BoolVar(&dither, "dither", true, "apply Floyd-Steinberg dithering to images")
	pflag.IntVarP(&rotate, "rotate", "r", 0, "rotate the image by 0, 90, 180 or 270 degrees")
	pflag.Uint8VarP(&threshold, "threshold", "T", render.DefaultThreshold, "luminance threshold between white and black")
	pflag.BoolVarP(&textMode, "text", "t", false, "treat the file as UTF-8 text")
	pflag.BoolVar(&rawMode, "raw", false, "treat the file as already-packed 1-bit pixels")
	pflag.StringVar(&fontFile, "fontfile", "", "TTF font for --text (default: embedded Go Regular)")
	pflag.Float64VarP(&fontSize, "size", "S", 18, "font size for --text")
	pflag.IntVarP(&concentration, "concentration", "C", -1, "set print darkness, 0..2")
	pflag.BoolVar(&showInfo, "info", false, "print device information and exit")
	pflag.BoolVar(&serve, "serve", false, "run a raw TCP print server (SERVER_ADDRESS env)")
	pflag.Parse()

	logger := log.New(os.Stderr, "[PPA6] ", log.LstdFlags|log.Lmsgprefix)

	a, err := openAdapter(logger)
	if err != nil {
		logger.Fatalf("cannot open printer: %v", err)
	}
	defer a.Close()

	p := printer.New(a, printer.WithLogger(logger))

	if err := p.Reset(); err != nil {
		logger.Fatalf("cannot reset printer: %v", err)
	}

	if concentration >= 0 {
		if concentration > 2 {
			logger.Fatalf("concentration %d out of range 0..2", concentration)
		}
		if err := p.SetConcentration(byte(concentration)); err != nil {
			logger.Fatalf("cannot set concentration: %v", err)
		}
	}

	switch {
	case showInfo:
		printInfo(p)
	case serve:
		runServer(p, logger)
	default:
		printFile(p, logger)
	}
}

func openAdapter(logger *log.Logger) (adapter.Adapter, error) {
	if device != "" {
		return adapter.OpenFile(device)
	}
	return adapter.FindWithLogger(logger)
}

func printInfo(p *printer.Printer) {
	report := func(label string, value any, err error) {
		if err != nil {
			fmt.Printf("%-15s <%v>\n", label, err)
			return
		}
		fmt.Printf("%-15s %v\n", label, value)
	}

	name, err := p.DeviceName()
	report("Name:", name, err)
	serial, err := p.Serial()
	report("Serial:", serial, err)
	firmware, err := p.FirmwareVersion()
	report("Firmware:", firmware, err)
	hardware, err := p.HardwareVersion()
	report("Hardware:", hardware, err)
	ip, err := p.IP()
	report("IP:", ip, err)
	mac, err := p.MAC()
	report("MAC:", mac, err)
	battery, err := p.Battery()
	report("Battery:", fmt.Sprintf("%d%%", battery), err)
}

func runServer(p *printer.Printer, logger *log.Logger) {
	viper.AutomaticEnv()
	viper.SetDefault("SERVER_ADDRESS", "localhost:9100")
	address := viper.GetString("SERVER_ADDRESS")

	var rows byte
	if feed {
		rows = feedRows
	}

	srv := server.NewWithLogger(p, address, rows, logger)
	if err := srv.Start(); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

func printFile(p *printer.Printer, logger *log.Logger) {
	if pflag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file>\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(2)
	}

	data, err := readInput(pflag.Arg(0))
	if err != nil {
		logger.Fatalf("cannot read input: %v", err)
	}

	doc, err := buildDocument(data)
	if err != nil {
		logger.Fatalf("cannot prepare document: %v", err)
	}

	for i := 0; i < copies; i++ {
		if err := p.PrintImageChunked(doc.Pixels(), doc.Width()); err != nil {
			logger.Fatalf("print failed: %v", err)
		}
	}

	if feed {
		if err := p.Feed(feedRows); err != nil {
			logger.Fatalf("feed failed: %v", err)
		}
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func buildDocument(data []byte) (*printer.Document, error) {
	switch {
	case rawMode:
		return printer.NewDocument(data)
	case textMode:
		return render.FromText(string(data), render.TextOptions{
			Size:      fontSize,
			FontFile:  fontFile,
			Threshold: threshold,
		})
	default:
		img, err := render.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return render.FromImage(img, render.ImageOptions{
			Threshold: threshold,
			Invert:    invert,
			Rotate:    rotate,
			Dither:    dither,
		})
	}
}
