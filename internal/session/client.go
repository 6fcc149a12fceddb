package session

import (
	"fmt"
	"io"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/wire"
)

// Client drives a remote controller over a byte stream. Calls must
// not be interleaved from multiple goroutines: each Step expects its
// response frame back-to-back on the same stream.
type Client struct {
	rw io.ReadWriter
}

// NewClient returns a driving-side client on rw.
func NewClient(rw io.ReadWriter) *Client {
	return &Client{rw: rw}
}

// Configure resets the remote engine with a new signal plan.
func (c *Client) Configure(t engine.Timing) error {
	if err := c.send(WireFromTiming(t)); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	return nil
}

// AddVehicle queues one arrival on the remote engine. Rejections are
// not reported back over the wire; the remote side logs them.
func (c *Client) AddVehicle(id string, start, end engine.Direction, arrival uint32) error {
	cmd := &wire.AddVehicleCommand{
		ID:      id,
		Start:   uint8(start),
		End:     uint8(end),
		Arrival: arrival,
	}
	if err := c.send(cmd); err != nil {
		return fmt.Errorf("add vehicle %q: %w", id, err)
	}
	return nil
}

// Step advances the remote engine one tick and returns its status.
func (c *Client) Step() (*wire.StepStatus, error) {
	if err := c.send(&wire.StepCommand{}); err != nil {
		return nil, fmt.Errorf("step: %w", err)
	}
	status, err := wire.ReadStepStatus(c.rw)
	if err != nil {
		return nil, fmt.Errorf("step response: %w", err)
	}
	return status, nil
}

// Stop ends the session on the remote side. No response follows.
func (c *Client) Stop() error {
	if err := c.send(&wire.StopCommand{}); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

func (c *Client) send(cmd wire.Command) error {
	frame, err := cmd.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := c.rw.Write(frame); err != nil {
		return err
	}
	return nil
}
