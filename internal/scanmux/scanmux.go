// Scanmux provides an abstraction over a serial-attached BLE sniffer with
// the ability for multiple clients to subscribe to advertisement lines from
// the sniffer and send commands to the single attached device.
package scanmux

import (
	"bufio"
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"tailscale.com/tsweb"
)

var (
	ErrWriteFailed   = fmt.Errorf("failed to write to sniffer port")
	ErrSnifferClosed = fmt.Errorf("sniffer stream ended")
)

// ScanMux is a generic sniffer port multiplexer that allows multiple
// clients to subscribe to advertisement lines from a single port.
type ScanMux[T Porter] struct {
	port         T
	subscribers  map[string]chan string
	subscriberMu sync.Mutex
	commandMu    sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	errMu sync.Mutex
	err   error // first terminal failure; nil while the stream is healthy
}

// ScanMuxInterface defines the interface for the ScanMux type.
type ScanMuxInterface interface {
	// Subscribe creates a new channel for receiving line events from the
	// sniffer. The channel ID is used to identify the unique channel when
	// unsubscribing.
	Subscribe() (string, chan string)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// SendCommand writes the provided command to the sniffer.
	SendCommand(string) error
	// Monitor reads lines from the sniffer and sends them to the
	// appropriate channels.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the port.
	Close() error

	// Err reports the terminal failure that ended the line stream, or nil
	// while the stream is healthy. Once non-nil, subscriber channels are
	// closed and new subscriptions receive an already-closed channel.
	Err() error

	Initialize() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewScanMux creates a ScanMux instance backed by the given sniffer port.
func NewScanMux[T Porter](port T) *ScanMux[T] {
	return &ScanMux[T]{
		port:        port,
		subscribers: make(map[string]chan string),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *ScanMux[T]) Subscribe() (string, chan string) {
	id := randomID()
	// buffered so a burst of advertisement lines is not dropped while the
	// collector is folding the previous line into its batch
	ch := make(chan string, 64)

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()

	// a subscriber arriving after the stream died gets a closed channel
	// immediately so it does not wait on lines that will never come.
	// checked under subscriberMu: fail sets the error before sweeping the
	// subscriber map, so a concurrent failure either is visible here or
	// closes the channel in its sweep.
	if s.Err() != nil {
		close(ch)
		return id, ch
	}

	s.subscribers[id] = ch
	return id, ch
}

// Err reports the terminal failure that ended the line stream, if any.
func (s *ScanMux[T]) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// fail records the stream's terminal error and closes every subscriber
// channel so blocked readers observe the failure.
func (s *ScanMux[T]) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Unsubscribe removes a subscriber from the scan mux.
func (s *ScanMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Initialize puts the sniffer into passive advertisement reporting with
// the line format the collector parses.
func (s *ScanMux[T]) Initialize() error {
	for _, command := range []string{
		"AX", // reset to factory defaults
		"OA", // report advertisement events
		"OR", // include RSSI with each report
		"ON", // include the local name when the advert carries one
		"DD", // de-duplicate within the radio's own report interval
	} {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send start command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand sends a command to the sniffer port.
func (s *ScanMux[T]) SendCommand(command string) error {
	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !bytes.HasSuffix([]byte(command), []byte("\n")) {
		command += "\n" // ensure command ends with a newline
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor monitors the sniffer port for advertisement lines and sends them
// to subscribers.
func (s *ScanMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// read from the port in a separate goroutine so the blocking
	// scan.Scan does not interfere with the outer loop awaiting lines
	// and context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			s.fail(err)
			return err

		case line, ok := <-lineChan:
			// if the channel is closed, we're done reading from the port
			if !ok {
				if err := scan.Err(); err != nil {
					s.fail(err)
					return err
				}
				// clean EOF: not a monitor error, but the stream is over
				// and subscribers must stop waiting on it
				s.fail(ErrSnifferClosed)
				return nil
			}
			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- line:
				default:
					// if the channel is full/blocking skip so as not to block the outer loop
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *ScanMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.fail(ErrSnifferClosed)
	return s.port.Close()
}

func (s *ScanMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// API endpoint to write a command to the sniffer
	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		io.WriteString(w, fmt.Sprintf("Wrote command %q to sniffer", command))
	})

	// API endpoint to issue Server-Side Events (SSE) in response to
	// advertisement lines coming from the sniffer.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					// Channel closed, exit gracefully
					return
				}
				if _, err := w.Write([]byte(fmt.Sprintf("data: %s\n\n", payload))); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
