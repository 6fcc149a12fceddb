package scenario

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/fourway-systems/fourway/internal/engine"
	"github.com/fourway-systems/fourway/internal/session"
)

// StepRecord lists the vehicles that left the intersection on one step, in
// discharge order.
type StepRecord struct {
	LeftVehicles []string `json:"leftVehicles"`
}

// Metrics summarises a finished run. Waits count steps from a vehicle's
// arrival to its departure; LeftWait averages only left-turning vehicles.
type Metrics struct {
	AvgWait    float64 `json:"avg_wait"`
	MaxWait    float64 `json:"max_wait"`
	Throughput int     `json:"throughput"`
	LeftWait   float64 `json:"left_wait"`
}

// RunResult is the per-step departure log plus the metrics derived from it.
// Only StepStatuses is part of the exchange format.
type RunResult struct {
	StepStatuses []StepRecord `json:"stepStatuses"`
	Metrics      Metrics      `json:"-"`
}

// Play drives a script through a controller session: configure, feed
// arrivals, step, collect departures. Departures the script never added are
// kept in the step log but excluded from the metrics.
func Play(client *session.Client, timing engine.Timing, script *Script) (*RunResult, error) {
	if err := client.Configure(timing); err != nil {
		return nil, fmt.Errorf("configuring controller: %w", err)
	}

	type entry struct {
		step int
		left bool
	}
	arrivals := make(map[string]entry, script.Vehicles())

	res := &RunResult{StepStatuses: []StepRecord{}}
	var waits, leftWaits []float64
	step := 0

	for i, cmd := range script.Commands {
		switch cmd.Type {
		case CommandAddVehicle:
			start, err := engine.ParseDirection(cmd.StartRoad)
			if err != nil {
				return nil, fmt.Errorf("command %d: %w", i, err)
			}
			end, err := engine.ParseDirection(cmd.EndRoad)
			if err != nil {
				return nil, fmt.Errorf("command %d: %w", i, err)
			}
			arrivals[cmd.VehicleID] = entry{step: step, left: start.LeftTurn() == end}
			if err := client.AddVehicle(cmd.VehicleID, start, end, uint32(step)); err != nil {
				return nil, fmt.Errorf("command %d: %w", i, err)
			}

		case CommandStep:
			step++
			status, err := client.Step()
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", step, err)
			}

			rec := StepRecord{LeftVehicles: status.Departed}
			if rec.LeftVehicles == nil {
				rec.LeftVehicles = []string{}
			}
			res.StepStatuses = append(res.StepStatuses, rec)

			for _, id := range status.Departed {
				a, ok := arrivals[id]
				if !ok {
					continue
				}
				wait := float64(step - a.step)
				waits = append(waits, wait)
				if a.left {
					leftWaits = append(leftWaits, wait)
				}
			}

		default:
			return nil, fmt.Errorf("command %d: unknown type %q", i, cmd.Type)
		}
	}

	res.Metrics = summarize(waits, leftWaits)
	return res, nil
}

// PlayLocal runs a script against an in-process controller, wiring client
// and server over an in-memory pipe. The transport carries the same frames
// a serial link would.
func PlayLocal(ctx context.Context, timing engine.Timing, script *Script) (*RunResult, error) {
	return PlayWith(ctx, engine.New(timing), timing, script)
}

// PlayWith is PlayLocal against a caller-supplied controller. Hosts that
// observe steps, recording runs for instance, wrap the engine themselves
// and pass the wrapper in.
func PlayWith(ctx context.Context, ctl session.Controller, timing engine.Timing, script *Script) (*RunResult, error) {
	clientConn, serverConn := net.Pipe()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer serverConn.Close()
		return session.NewServer(ctl, serverConn).Serve(ctx)
	})

	var res *RunResult
	g.Go(func() error {
		defer clientConn.Close()
		client := session.NewClient(clientConn)
		out, err := Play(client, timing, script)
		if err != nil {
			return err
		}
		if err := client.Stop(); err != nil {
			return err
		}
		res = out
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func summarize(waits, leftWaits []float64) Metrics {
	var m Metrics
	m.Throughput = len(waits)

	for _, w := range waits {
		m.AvgWait += w
		if w > m.MaxWait {
			m.MaxWait = w
		}
	}
	if len(waits) > 0 {
		m.AvgWait /= float64(len(waits))
	}

	for _, w := range leftWaits {
		m.LeftWait += w
	}
	if len(leftWaits) > 0 {
		m.LeftWait /= float64(len(leftWaits))
	}
	return m
}
