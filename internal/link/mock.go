package link

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by operations on a closed TestablePort.
var ErrPortClosed = errors.New("link: port closed")

// TestablePort is an in-memory Port with configurable behaviour for tests.
// With BlockReads set it behaves like serial hardware: Read on an empty
// buffer waits until AddReadData supplies bytes or the port is closed.
type TestablePort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	readBuf  bytes.Buffer
	writeBuf bytes.Buffer

	// ReadError is returned by the next Read call, then cleared.
	ReadError error

	// WriteError is returned by the next Write call, then cleared.
	WriteError error

	// CloseError is returned by Close.
	CloseError error

	// BlockReads makes Read wait for data instead of returning io.EOF.
	BlockReads bool

	closed      bool
	readCalls   int
	writeCalls  int
	readTimeout time.Duration
}

var _ TimeoutPort = (*TestablePort)(nil)

// NewTestablePort returns an open TestablePort with empty buffers.
func NewTestablePort() *TestablePort {
	p := &TestablePort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read drains previously added data. Injected errors take precedence; a
// closed port always fails.
func (p *TestablePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.readCalls++

	if p.closed {
		return 0, ErrPortClosed
	}

	if p.ReadError != nil {
		err := p.ReadError
		p.ReadError = nil
		return 0, err
	}

	if p.BlockReads {
		for !p.closed && p.readBuf.Len() == 0 {
			p.readCond.Wait()
		}
		if p.closed {
			return 0, ErrPortClosed
		}
	}

	return p.readBuf.Read(b)
}

// Write captures data into the write buffer.
func (p *TestablePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.writeCalls++

	if p.closed {
		return 0, ErrPortClosed
	}

	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}

	return p.writeBuf.Write(b)
}

// Close marks the port closed and wakes any blocked readers.
func (p *TestablePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.readCond.Broadcast()
	return p.CloseError
}

// SetReadTimeout records the requested timeout.
func (p *TestablePort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.readTimeout = timeout
	return nil
}

// AddReadData appends data for subsequent Read calls and wakes one blocked
// reader.
func (p *TestablePort) AddReadData(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.readBuf.Write(data)
	p.readCond.Signal()
}

// WrittenData returns a copy of everything written to the port so far.
func (p *TestablePort) WrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]byte(nil), p.writeBuf.Bytes()...)
}

// ReadCalls returns the number of Read calls observed.
func (p *TestablePort) ReadCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.readCalls
}

// WriteCalls returns the number of Write calls observed.
func (p *TestablePort) WriteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writeCalls
}

// Reset clears buffers, counters, and injected errors, and reopens the port.
func (p *TestablePort) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.readBuf.Reset()
	p.writeBuf.Reset()
	p.readCalls = 0
	p.writeCalls = 0
	p.closed = false
	p.ReadError = nil
	p.WriteError = nil
	p.CloseError = nil
}
