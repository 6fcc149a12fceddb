package session

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/monitoring"
	"github.com/fourway-systems/fourway/internal/wire"
)

type scriptRW struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func (s *scriptRW) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *scriptRW) Write(p []byte) (int, error) { return s.out.Write(p) }

func frames(t *testing.T, cmds ...wire.Command) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	for _, c := range cmds {
		data, err := c.MarshalBinary()
		require.NoError(t, err)
		buf.Write(data)
	}
	return &buf
}

func TestServerFrameLoop(t *testing.T) {
	rw := &scriptRW{
		in: frames(t,
			&wire.ConfigureCommand{GreenStraight: 2, GreenLeft: 1, Yellow: 1, ExtendThreshold: 100, SkipLimit: 2},
			&wire.AddVehicleCommand{ID: "veh-1", Start: 0, End: 2, Arrival: 0},
			&wire.StepCommand{},
			&wire.StepCommand{},
			&wire.StopCommand{},
		),
		out: &bytes.Buffer{},
	}

	srv := NewServer(engine.New(engine.DefaultTiming()), rw)
	require.NoError(t, srv.Serve(context.Background()))

	first, err := wire.ReadStepStatus(rw.out)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), first.Tick)
	assert.Equal(t, uint8(engine.StateNSRedYellow), first.State)
	assert.Equal(t, uint8(engine.LightRedYellow), first.NSStraightLight)
	assert.Empty(t, first.Departed)

	second, err := wire.ReadStepStatus(rw.out)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), second.Tick)
	assert.Equal(t, uint8(engine.StateNSStraight), second.State)
	assert.Equal(t, uint8(engine.LightGreen), second.NSStraightLight)
	assert.Equal(t, uint8(engine.LightRed), second.EWStraightLight)
	assert.Equal(t, []string{"veh-1"}, second.Departed)

	// Nothing beyond the two responses.
	assert.Zero(t, rw.out.Len())
}

func TestServerEndsCleanlyOnEOF(t *testing.T) {
	rw := &scriptRW{
		in:  frames(t, &wire.StepCommand{}),
		out: &bytes.Buffer{},
	}
	srv := NewServer(engine.New(engine.DefaultTiming()), rw)
	assert.NoError(t, srv.Serve(context.Background()))
}

func TestServerSkipsUnknownCommand(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, format)
	})

	in := frames(t, &wire.ConfigureCommand{GreenStraight: 1})
	in.WriteByte(0xAA) // not a command
	stepAndStop := frames(t, &wire.StepCommand{}, &wire.StopCommand{})
	in.Write(stepAndStop.Bytes())

	rw := &scriptRW{in: in, out: &bytes.Buffer{}}
	srv := NewServer(engine.New(engine.DefaultTiming()), rw)
	require.NoError(t, srv.Serve(context.Background()))

	// The step after the junk byte still ran.
	status, err := wire.ReadStepStatus(rw.out)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), status.Tick)
	assert.NotEmpty(t, logged)
}

func TestServerLogsRejectedVehicles(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged int
	monitoring.SetLogger(func(format string, v ...interface{}) { logged++ })

	rw := &scriptRW{
		in: frames(t,
			&wire.AddVehicleCommand{ID: "u-turner", Start: 1, End: 1},
			&wire.AddVehicleCommand{ID: "off-grid", Start: 7, End: 0},
			&wire.StepCommand{},
			&wire.StopCommand{},
		),
		out: &bytes.Buffer{},
	}
	eng := engine.New(engine.DefaultTiming())
	require.NoError(t, NewServer(eng, rw).Serve(context.Background()))

	assert.Equal(t, 2, logged)
	assert.Zero(t, eng.QueuedTotal())
	// The session stays healthy: the step response still arrives.
	_, err := wire.ReadStepStatus(rw.out)
	assert.NoError(t, err)
}

func TestServerTruncatedPayload(t *testing.T) {
	full := frames(t, &wire.AddVehicleCommand{ID: "veh-1", Start: 0, End: 2})
	rw := &scriptRW{
		in:  bytes.NewBuffer(full.Bytes()[:12]),
		out: &bytes.Buffer{},
	}
	err := NewServer(engine.New(engine.DefaultTiming()), rw).Serve(context.Background())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestServerContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rw := &scriptRW{in: frames(t, &wire.StepCommand{}), out: &bytes.Buffer{}}
	err := NewServer(engine.New(engine.DefaultTiming()), rw).Serve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// TestClientServerLoopback runs a complete session over an in-process
// pipe: configure, load one vehicle, step to its departure, stop.
func TestClientServerLoopback(t *testing.T) {
	hostSide, deviceSide := net.Pipe()
	defer hostSide.Close()
	defer deviceSide.Close()

	served := make(chan error, 1)
	go func() {
		served <- NewServer(engine.New(engine.DefaultTiming()), deviceSide).Serve(context.Background())
	}()

	client := NewClient(hostSide)
	require.NoError(t, client.Configure(engine.Timing{
		GreenStraight:   4,
		GreenLeft:       3,
		Yellow:          2,
		AllRed:          3,
		ExtendThreshold: 1,
		MaxExtension:    1,
		SkipLimit:       2,
	}))
	require.NoError(t, client.AddVehicle("veh-1", engine.North, engine.South, 0))

	status, err := client.Step()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), status.Tick)
	assert.Equal(t, uint8(engine.StateNSRedYellow), status.State)
	assert.Empty(t, status.Departed)

	status, err = client.Step()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), status.Tick)
	assert.Equal(t, uint8(engine.StateNSStraight), status.State)
	assert.Equal(t, []string{"veh-1"}, status.Departed)

	require.NoError(t, client.Stop())
	assert.NoError(t, <-served)
}
