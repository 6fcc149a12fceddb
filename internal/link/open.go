package link

import (
	"fmt"

	"go.bug.st/serial"
)

// Open opens the serial device at path and configures it with opts. Reads on
// the returned port block until data arrives, which is what the session loop
// expects.
func Open(path string, opts PortOptions) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("configuring serial port %s: %w", path, err)
	}

	return port, nil
}
