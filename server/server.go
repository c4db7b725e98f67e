// Package server exposes the printer on a TCP socket, in the spirit of
// a JetDirect raw port. Each connection carries one packed 1-bit
// document: the client writes the pixel bytes and closes its side, the
// server validates and prints them through the thermally-safe chunked
// path.
package server

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/printbridge/peripage-usb-server/printer"
)

// DocumentPrinter is the slice of the protocol engine the server needs.
type DocumentPrinter interface {
	PrintImageChunked(pixels []byte, width int) error
	Feed(rows byte) error
}

// maxDocumentBytes caps a single job at 4096 rows of paper.
const maxDocumentBytes = printer.BytesPerRow * 4096

// Server accepts raw print jobs over TCP and forwards them to one
// printer.
type Server struct {
	printer  DocumentPrinter
	listener net.Listener
	address  string
	feedRows byte
	mu       sync.Mutex
	running  bool
	wg       sync.WaitGroup
	logger   *log.Logger
}

// New creates a server printing jobs on the given printer. feedRows of
// blank paper are fed after every job; zero disables the feed.
func New(p DocumentPrinter, address string, feedRows byte) *Server {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags|log.Lmsgprefix)
	return NewWithLogger(p, address, feedRows, logger)
}

// NewWithLogger creates a server with a custom logger.
func NewWithLogger(p DocumentPrinter, address string, feedRows byte, logger *log.Logger) *Server {
	return &Server{
		printer:  p,
		address:  address,
		feedRows: feedRows,
		logger:   logger,
	}
}

// Start starts the server and blocks until Stop is called.
func (s *Server) Start() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.logger.Println("Ready to accept connections")
	s.acceptConnections()
	return nil
}

// StartAsync starts the server in a goroutine and returns immediately.
func (s *Server) StartAsync() error {
	if err := s.listen(); err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptConnections()
	}()
	s.logger.Println("Server started in background, ready to accept connections")
	return nil
}

func (s *Server) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Println("Error: Server already running")
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Printf("Error: Failed to start server: %v", err)
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.running = true
	s.logger.Printf("Server listening on %s", s.address)
	return nil
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()

			if !running {
				s.logger.Println("Server shutting down, stopping accept loop")
				return
			}
			s.logger.Printf("Error accepting connection: %v", err)
			continue
		}

		s.logger.Printf("Client connected from %s", conn.RemoteAddr())
		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection reads one document per connection and prints it.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.logger.Printf("Client disconnected: %s", conn.RemoteAddr())
		conn.Close()
	}()

	clientAddr := conn.RemoteAddr().String()

	pixels, err := io.ReadAll(io.LimitReader(conn, maxDocumentBytes+1))
	if err != nil {
		s.logger.Printf("Error reading job from %s: %v", clientAddr, err)
		return
	}
	if len(pixels) > maxDocumentBytes {
		s.logger.Printf("Rejecting job from %s: exceeds %d bytes", clientAddr, maxDocumentBytes)
		fmt.Fprintf(conn, "ERR job too large\n")
		return
	}

	doc, err := printer.NewDocument(pixels)
	if err != nil {
		s.logger.Printf("Rejecting job from %s: %v", clientAddr, err)
		fmt.Fprintf(conn, "ERR %v\n", err)
		return
	}

	s.logger.Printf("Printing %d rows for %s", doc.Height(), clientAddr)
	if err := s.printer.PrintImageChunked(doc.Pixels(), doc.Width()); err != nil {
		s.logger.Printf("Error printing job from %s: %v", clientAddr, err)
		fmt.Fprintf(conn, "ERR %v\n", err)
		return
	}

	if s.feedRows > 0 {
		if err := s.printer.Feed(s.feedRows); err != nil {
			s.logger.Printf("Error feeding paper: %v", err)
		}
	}

	fmt.Fprintf(conn, "OK %d rows\n", doc.Height())
}

// Stop stops the server and waits for in-flight jobs.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Println("Stop called but server is not running")
		return nil
	}

	s.logger.Println("Stopping server...")
	s.running = false
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	s.logger.Println("Waiting for active connections to close...")
	s.wg.Wait()
	s.logger.Println("Server stopped successfully")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.address
}

// GetPrinter returns the printer jobs are forwarded to.
func (s *Server) GetPrinter() DocumentPrinter {
	return s.printer
}
