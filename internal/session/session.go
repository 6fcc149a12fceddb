// Package session speaks the controller wire protocol over a byte
// stream. The Server side owns an intersection engine and answers
// frames from a driving host; the Client side is the driving host.
//
// Transports are plain io.ReadWriters: a serial port, a stdio pair, or
// an in-process pipe all serve. Reads block, so hosts cancel a session
// by closing the underlying transport.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/monitoring"
	"github.com/fourway-systems/fourway/internal/wire"
)

// Controller is the slice of engine behavior a session drives. The
// bare engine satisfies it; hosts that also expose the engine over
// HTTP wrap it in a mutex first.
type Controller interface {
	Configure(engine.Timing)
	AddVehicle(id string, start, end engine.Direction, arrival uint32) error
	Step() engine.StepResult
}

// Server answers wire frames against a controller until the stream
// ends, a Stop frame arrives, or the context is canceled.
type Server struct {
	ctl Controller
	rw  io.ReadWriter
}

// NewServer returns a server for one session on rw.
func NewServer(ctl Controller, rw io.ReadWriter) *Server {
	return &Server{ctl: ctl, rw: rw}
}

// Serve runs the frame loop. A clean end of stream or a Stop frame
// returns nil. Unknown command codes are logged and skipped without
// touching the engine; add-vehicle rejections are logged and otherwise
// silent, matching the protocol contract. Cancellation is checked
// between frames; callers unblock a pending read by closing the
// transport.
func (s *Server) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, err := wire.ReadCommand(s.rw)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownCommand) {
				monitoring.Logf("session: skipping %v", err)
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		switch c := cmd.(type) {
		case *wire.ConfigureCommand:
			s.ctl.Configure(TimingFromWire(c))
		case *wire.AddVehicleCommand:
			if err := s.ctl.AddVehicle(c.ID, engine.Direction(c.Start), engine.Direction(c.End), c.Arrival); err != nil {
				monitoring.Logf("session: add vehicle %q rejected: %v", c.ID, err)
			}
		case *wire.StepCommand:
			status := StatusFromStep(s.ctl.Step())
			frame, err := status.MarshalBinary()
			if err != nil {
				return fmt.Errorf("encode step status: %w", err)
			}
			if _, err := s.rw.Write(frame); err != nil {
				return fmt.Errorf("write step status: %w", err)
			}
		case *wire.StopCommand:
			return nil
		}
	}
}

// TimingFromWire maps a configure frame onto an engine signal plan.
// The red-yellow interval does not travel; the engine pins it.
func TimingFromWire(c *wire.ConfigureCommand) engine.Timing {
	return engine.Timing{
		GreenStraight:   c.GreenStraight,
		GreenLeft:       c.GreenLeft,
		Yellow:          c.Yellow,
		AllRed:          c.AllRed,
		ExtendThreshold: c.ExtendThreshold,
		MaxExtension:    c.MaxExtension,
		SkipLimit:       c.SkipLimit,
	}
}

// WireFromTiming is the reverse mapping, used by the driving side.
func WireFromTiming(t engine.Timing) *wire.ConfigureCommand {
	return &wire.ConfigureCommand{
		GreenStraight:   t.GreenStraight,
		GreenLeft:       t.GreenLeft,
		Yellow:          t.Yellow,
		AllRed:          t.AllRed,
		ExtendThreshold: t.ExtendThreshold,
		MaxExtension:    t.MaxExtension,
		SkipLimit:       t.SkipLimit,
	}
}

// StatusFromStep condenses a step result into its wire form. North
// represents the north-south axis and east the east-west axis, the
// same convention the device's status LEDs use.
func StatusFromStep(res engine.StepResult) *wire.StepStatus {
	status := &wire.StepStatus{
		Tick:            res.Tick,
		State:           uint8(res.State),
		NSStraightLight: uint8(res.Lights[engine.North][engine.LaneStraightRight]),
		NSLeftLight:     uint8(res.Lights[engine.North][engine.LaneLeft]),
		EWStraightLight: uint8(res.Lights[engine.East][engine.LaneStraightRight]),
		EWLeftLight:     uint8(res.Lights[engine.East][engine.LaneLeft]),
	}
	for _, dep := range res.Departed {
		status.Departed = append(status.Departed, dep.ID)
	}
	return status
}
