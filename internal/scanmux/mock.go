package scanmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"
)

// MockPort implements Porter for dev mode and testing. Commands written
// to the port are discarded; reads replay fixture lines.
type MockPort struct {
	io.Reader
	closer io.Closer
}

func (m *MockPort) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func (m *MockPort) Close() error {
	return m.closer.Close()
}

// NewMockScanMux creates a ScanMux instance backed by a mock sniffer port
// that replays the given advertisement lines on a fixed cadence. Used by
// dev mode so the whole stack can run without sniffer hardware.
func NewMockScanMux(fixture []byte) *ScanMux[*MockPort] {
	r, w := io.Pipe()

	mockPort := &MockPort{
		Reader: r,
		closer: r,
	}

	// replay fixture lines periodically to simulate sniffer input
	go func() {
		lines := bytes.Split(bytes.TrimSpace(fixture), []byte("\n"))
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		i := 0
		for range ticker.C {
			if _, err := w.Write(append(lines[i%len(lines)], '\n')); err != nil {
				return
			}
			i++
		}
	}()

	return NewScanMux(mockPort)
}

// TestablePort implements Porter with configurable behaviour for testing.
// It provides fine-grained control over reads, writes, and errors.
type TestablePort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// ReadError is returned by the next Read call if set
	ReadError error

	// WriteError is returned by the next Write call if set
	WriteError error

	// Closed indicates whether Close was called
	Closed bool

	// BlockReads causes Read to block until data is added or Close is called
	BlockReads bool

	readCond *sync.Cond
}

// NewTestablePort creates a new TestablePort for testing.
func NewTestablePort() *TestablePort {
	tp := &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
	}
	tp.readCond = sync.NewCond(&tp.mu)
	return tp
}

// Read reads from the read buffer, optionally blocking until data arrives.
func (t *TestablePort) Read(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("sniffer port closed")
	}

	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}

	if t.BlockReads && t.ReadBuffer.Len() == 0 {
		for !t.Closed && t.ReadBuffer.Len() == 0 {
			t.readCond.Wait()
		}
		if t.Closed {
			return 0, errors.New("sniffer port closed")
		}
	}

	return t.ReadBuffer.Read(p)
}

// Write writes to the write buffer.
func (t *TestablePort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Closed {
		return 0, errors.New("sniffer port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed and wakes any blocked readers.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	t.readCond.Broadcast()
	return nil
}

// AddReadData adds data to be returned by subsequent Read calls.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ReadBuffer.Write(data)
	t.readCond.Signal()
}

// GetWrittenData returns all data written to the port.
func (t *TestablePort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.WriteBuffer.Bytes()
}
