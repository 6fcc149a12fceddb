// Package link provides the byte transport a controller session runs over.
// Real deployments talk to controller hardware through a serial port; tests
// and the loopback simulator substitute in-memory ports.
package link

import (
	"io"
	"time"
)

// Port is the minimal interface a controller transport must satisfy. Both
// real serial ports and in-memory test ports implement it.
type Port interface {
	io.ReadWriter
	io.Closer
}

// TimeoutPort extends Port for transports whose reads can time out.
// Serial hardware implements it; in-memory ports may.
type TimeoutPort interface {
	Port
	// SetReadTimeout sets the read timeout for subsequent Read calls.
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens a port at the given device path. Commands accept an Opener so
// tests can inject an in-memory port instead of real hardware.
type Opener func(path string, opts PortOptions) (Port, error)
