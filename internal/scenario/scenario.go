// Package scenario defines traffic scripts: vehicle arrivals interleaved
// with the step commands that advance the controller. Scripts round-trip
// through the JSON layout the bench tooling exchanges.
package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fourway-systems/fourway/internal/engine"
)

// Command types. Anything else in a script is rejected.
const (
	CommandAddVehicle = "addVehicle"
	CommandStep       = "step"
)

// Command is one entry in a script. Road fields hold lowercase compass
// names; they are only set for addVehicle commands.
type Command struct {
	Type      string `json:"type"`
	VehicleID string `json:"vehicleId,omitempty"`
	StartRoad string `json:"startRoad,omitempty"`
	EndRoad   string `json:"endRoad,omitempty"`
}

// Script is an ordered command list, usually one profile's generated
// traffic.
type Script struct {
	Commands []Command `json:"commands"`
	Name     string    `json:"name,omitempty"`
}

// Steps counts the step commands in the script.
func (s *Script) Steps() int {
	n := 0
	for _, cmd := range s.Commands {
		if cmd.Type == CommandStep {
			n++
		}
	}
	return n
}

// Vehicles counts the addVehicle commands in the script.
func (s *Script) Vehicles() int {
	n := 0
	for _, cmd := range s.Commands {
		if cmd.Type == CommandAddVehicle {
			n++
		}
	}
	return n
}

// Validate checks every command: known type, named vehicle, and a drivable
// route. The controller would silently drop bad arrivals; validating first
// keeps script mistakes visible.
func (s *Script) Validate() error {
	for i, cmd := range s.Commands {
		switch cmd.Type {
		case CommandStep:
		case CommandAddVehicle:
			if cmd.VehicleID == "" {
				return fmt.Errorf("command %d: missing vehicleId", i)
			}
			start, err := engine.ParseDirection(cmd.StartRoad)
			if err != nil {
				return fmt.Errorf("command %d: start road: %w", i, err)
			}
			end, err := engine.ParseDirection(cmd.EndRoad)
			if err != nil {
				return fmt.Errorf("command %d: end road: %w", i, err)
			}
			if _, err := engine.LaneFor(start, end); err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
		default:
			return fmt.Errorf("command %d: unknown type %q", i, cmd.Type)
		}
	}
	return nil
}

// Decode reads a script from r.
func Decode(r io.Reader) (*Script, error) {
	var s Script
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	return &s, nil
}

// Load reads and validates a script file.
func Load(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Save writes the script to path as indented JSON.
func (s *Script) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// BenchFileName returns the conventional file name for a named benchmark
// script.
func BenchFileName(name string) string {
	return "bench_" + name + ".json"
}
