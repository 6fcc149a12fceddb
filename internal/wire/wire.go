// Package wire implements the framed binary protocol spoken between a
// driving host and the intersection controller. Frames are packed
// little-endian: a one-byte command code followed by a fixed payload.
// Vehicle IDs travel in fixed 32-byte NUL-padded buffers.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Command codes. The values are fixed by deployed controllers.
const (
	CmdConfigure  uint8 = 0
	CmdAddVehicle uint8 = 1
	CmdStep       uint8 = 2
	CmdStop       uint8 = 99
)

// IDBufLen is the on-wire size of a vehicle ID buffer. The last byte
// is always a NUL terminator, so 31 ID bytes survive the trip.
const IDBufLen = 32

// ErrUnknownCommand is returned by ReadCommand for a code outside the
// protocol. The stream position is past the offending byte; the caller
// decides whether to resynchronize or drop the session.
var ErrUnknownCommand = errors.New("unknown command")

// Command is one decoded frame from the driving side.
type Command interface {
	// MarshalBinary renders the full frame including the command code.
	MarshalBinary() ([]byte, error)
}

// ConfigureCommand resets the controller with a new signal plan. The
// red-yellow interval is not carried; controllers pin it at one tick.
type ConfigureCommand struct {
	GreenStraight   uint32
	GreenLeft       uint32
	Yellow          uint32
	AllRed          uint32
	ExtendThreshold uint32
	MaxExtension    uint32
	SkipLimit       uint32
}

// AddVehicleCommand queues one arrival. Start and End are road codes
// (0=north, 1=east, 2=south, 3=west); Arrival is the tick the vehicle
// reached the intersection.
type AddVehicleCommand struct {
	ID      string
	Start   uint8
	End     uint8
	Arrival uint32
}

// StepCommand advances the controller one tick and requests a
// StepStatus in return.
type StepCommand struct{}

// StopCommand ends the session. It has no payload and no response.
type StopCommand struct{}

func (c *ConfigureCommand) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 29))
	buf.WriteByte(CmdConfigure)
	for _, v := range []uint32{
		c.GreenStraight, c.GreenLeft, c.Yellow, c.AllRed,
		c.ExtendThreshold, c.MaxExtension, c.SkipLimit,
	} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (c *AddVehicleCommand) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 39))
	buf.WriteByte(CmdAddVehicle)
	var id [IDBufLen]byte
	putID(id[:], c.ID)
	buf.Write(id[:])
	buf.WriteByte(c.Start)
	buf.WriteByte(c.End)
	if err := binary.Write(buf, binary.LittleEndian, c.Arrival); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *StepCommand) MarshalBinary() ([]byte, error) {
	return []byte{CmdStep}, nil
}

func (c *StopCommand) MarshalBinary() ([]byte, error) {
	return []byte{CmdStop}, nil
}

// ReadCommand reads one frame. io.EOF is returned untouched when the
// stream ends cleanly before a command code; a truncated payload comes
// back as io.ErrUnexpectedEOF.
func ReadCommand(r io.Reader) (Command, error) {
	var code uint8
	if err := binary.Read(r, binary.LittleEndian, &code); err != nil {
		return nil, err
	}
	switch code {
	case CmdConfigure:
		return readConfigureCommand(r)
	case CmdAddVehicle:
		return readAddVehicleCommand(r)
	case CmdStep:
		return &StepCommand{}, nil
	case CmdStop:
		return &StopCommand{}, nil
	default:
		return nil, fmt.Errorf("%w 0x%02x", ErrUnknownCommand, code)
	}
}

func readConfigureCommand(r io.Reader) (*ConfigureCommand, error) {
	var c ConfigureCommand
	if err := binary.Read(r, binary.LittleEndian, &c); err != nil {
		return nil, fmt.Errorf("configure payload: %w", unexpected(err))
	}
	return &c, nil
}

func readAddVehicleCommand(r io.Reader) (*AddVehicleCommand, error) {
	var id [IDBufLen]byte
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return nil, fmt.Errorf("vehicle id: %w", unexpected(err))
	}
	var rest struct {
		Start   uint8
		End     uint8
		Arrival uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &rest); err != nil {
		return nil, fmt.Errorf("vehicle route: %w", unexpected(err))
	}
	return &AddVehicleCommand{
		ID:      trimID(id[:]),
		Start:   rest.Start,
		End:     rest.End,
		Arrival: rest.Arrival,
	}, nil
}

// StepStatus is the controller's answer to a Step command: the tick
// just completed, the state and the four representative lights after
// any transition, and the IDs of vehicles that departed this tick in
// discharge order. North stands in for the north-south axis and east
// for the east-west axis.
type StepStatus struct {
	Tick            uint32
	State           uint8
	NSStraightLight uint8
	NSLeftLight     uint8
	EWStraightLight uint8
	EWLeftLight     uint8
	Departed        []string
}

// stepStatusHeader is the fixed 11-byte prefix of a StepStatus frame.
type stepStatusHeader struct {
	Tick            uint32
	State           uint8
	NSStraightLight uint8
	NSLeftLight     uint8
	EWStraightLight uint8
	EWLeftLight     uint8
	Count           uint16
}

func (s *StepStatus) MarshalBinary() ([]byte, error) {
	if len(s.Departed) > 0xFFFF {
		return nil, fmt.Errorf("departure count %d exceeds uint16", len(s.Departed))
	}
	buf := bytes.NewBuffer(make([]byte, 0, 11+len(s.Departed)*IDBufLen))
	hdr := stepStatusHeader{
		Tick:            s.Tick,
		State:           s.State,
		NSStraightLight: s.NSStraightLight,
		NSLeftLight:     s.NSLeftLight,
		EWStraightLight: s.EWStraightLight,
		EWLeftLight:     s.EWLeftLight,
		Count:           uint16(len(s.Departed)),
	}
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	for _, dep := range s.Departed {
		var id [IDBufLen]byte
		putID(id[:], dep)
		buf.Write(id[:])
	}
	return buf.Bytes(), nil
}

// ReadStepStatus reads one step response frame.
func ReadStepStatus(r io.Reader) (*StepStatus, error) {
	var hdr stepStatusHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("step status header: %w", unexpected(err))
	}
	s := &StepStatus{
		Tick:            hdr.Tick,
		State:           hdr.State,
		NSStraightLight: hdr.NSStraightLight,
		NSLeftLight:     hdr.NSLeftLight,
		EWStraightLight: hdr.EWStraightLight,
		EWLeftLight:     hdr.EWLeftLight,
	}
	for i := 0; i < int(hdr.Count); i++ {
		var id [IDBufLen]byte
		if _, err := io.ReadFull(r, id[:]); err != nil {
			return nil, fmt.Errorf("departed id %d of %d: %w", i+1, hdr.Count, unexpected(err))
		}
		s.Departed = append(s.Departed, trimID(id[:]))
	}
	return s, nil
}

// putID copies id into a zeroed on-wire buffer, truncating to 31 bytes
// so the terminator always survives.
func putID(dst []byte, id string) {
	copy(dst[:IDBufLen-1], id)
}

// trimID recovers the string from a NUL-padded buffer.
func trimID(buf []byte) string {
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		return string(buf[:i])
	}
	return string(buf)
}

// unexpected converts a bare EOF mid-payload into ErrUnexpectedEOF so
// callers can tell a clean close from a truncated frame.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
