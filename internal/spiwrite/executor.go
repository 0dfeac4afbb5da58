package spiwrite

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/vk-instruments/spibeam/internal/array"
	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/fixed"
	"github.com/vk-instruments/spibeam/internal/regs"
	"github.com/vk-instruments/spibeam/internal/spibus"
	"github.com/vk-instruments/spibeam/internal/trig"
)

// binaryPrefix marks a bulk payload command.
const binaryPrefix = "BINARY:"

// Result is the operator-visible outcome of one command: a status message
// plus any register values read back.
type Result struct {
	Message   string
	Responses []uint32
}

// SweepLog persists completed sweeps. A nil log disables persistence.
type SweepLog interface {
	RecordSweep(cmd beam.Command, frames [beam.Lanes][]beam.Frame, faults [beam.Lanes]int) (string, error)
}

// Executor interprets operator commands against the peripheral. Text
// commands cover beam steering, a wire-level dry run, the raw FIFO send
// sequence, and register access; BINARY commands carry bulk element-value
// payloads.
type Executor struct {
	wr         regs.Writer
	loader     *Loader
	provider   trig.Provider
	sweeps     SweepLog
	busDivider int
}

// NewExecutor builds the command executor over a register space and the
// trig provider used for beam computations. Completed beam sweeps are
// recorded to sweeps when it is non-nil; busDivider sets the serial clock
// rate of simulated sweeps.
func NewExecutor(wr regs.Writer, provider trig.Provider, sweeps SweepLog, busDivider int) *Executor {
	return &Executor{
		wr:         wr,
		loader:     NewLoader(wr),
		provider:   provider,
		sweeps:     sweeps,
		busDivider: busDivider,
	}
}

// Loader exposes the underlying FIFO loader.
func (e *Executor) Loader() *Loader { return e.loader }

// Execute runs one raw command line and returns its result. Unknown
// commands are not an error; they echo the device console's shrug.
func (e *Executor) Execute(ctx context.Context, raw string) (Result, error) {
	if strings.HasPrefix(raw, binaryPrefix) {
		return e.executeBinary(raw[len(binaryPrefix):])
	}

	tokens := strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == '&' })
	if len(tokens) == 0 {
		return Result{}, nil
	}

	switch tokens[0] {
	case "start":
		if err := e.loader.InitBus(0); err != nil {
			return Result{}, err
		}
		return Result{Message: "init completed"}, nil

	case "done":
		if err := e.loader.Execute(ctx); err != nil {
			return Result{}, err
		}
		return Result{Message: "done complete"}, nil

	case "beam":
		return e.executeBeam(ctx, tokens[1:])

	case "sim":
		return e.executeSim(tokens[1:])

	case "read":
		if len(tokens) != 2 {
			return Result{}, fmt.Errorf("spiwrite: usage: read <addr>")
		}
		addr, err := parseHex32(tokens[1])
		if err != nil {
			return Result{}, err
		}
		v, err := e.wr.Read32(addr)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Message:   fmt.Sprintf("0x%08x => 0x%08x", addr, v),
			Responses: []uint32{v},
		}, nil

	case "write":
		if len(tokens) != 3 {
			return Result{}, fmt.Errorf("spiwrite: usage: write <addr> <value>")
		}
		addr, err := parseHex32(tokens[1])
		if err != nil {
			return Result{}, err
		}
		value, err := parseHex32(tokens[2])
		if err != nil {
			return Result{}, err
		}
		if err := e.wr.Write32(addr, value); err != nil {
			return Result{}, err
		}
		return Result{Message: fmt.Sprintf("0x%08x <= 0x%08x", addr, value)}, nil
	}

	return Result{Message: "what?"}, nil
}

// parseBeamCommand reads <az> <el> <tx|rx> into a beam command.
func parseBeamCommand(args []string) (beam.Command, error) {
	az, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return beam.Command{}, fmt.Errorf("spiwrite: azimuth %q: %w", args[0], err)
	}
	el, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return beam.Command{}, fmt.Errorf("spiwrite: elevation %q: %w", args[1], err)
	}
	var transmit bool
	switch args[2] {
	case "tx":
		transmit = true
	case "rx":
	default:
		return beam.Command{}, fmt.Errorf("spiwrite: mode %q is not tx or rx", args[2])
	}
	return beam.Command{
		Azimuth:   fixed.DegreesFromFloat(az),
		Elevation: fixed.DegreesFromFloat(el),
		Transmit:  transmit,
	}, nil
}

// executeBeam steers the whole aperture: az/el in degrees plus the tx/rx
// mode, computed to per-lane frames, loaded and sent.
func (e *Executor) executeBeam(ctx context.Context, args []string) (Result, error) {
	if len(args) != 3 {
		return Result{}, fmt.Errorf("spiwrite: usage: beam <az> <el> <tx|rx>")
	}
	cmd, err := parseBeamCommand(args)
	if err != nil {
		return Result{}, err
	}
	frames, err := array.SweepFrames(cmd, e.provider)
	if err != nil {
		return Result{}, err
	}
	if err := e.loader.LoadSweep(frames); err != nil {
		return Result{}, err
	}
	if err := e.loader.Execute(ctx); err != nil {
		return Result{}, err
	}
	if e.sweeps != nil {
		// The sweep already reached the hardware; a logging failure is
		// reported but does not fail the command.
		if _, err := e.sweeps.RecordSweep(cmd, frames, [beam.Lanes]int{}); err != nil {
			log.Printf("failed to record sweep: %v", err)
		}
	}
	log.Printf("beam steered az=%s el=%s mode=%s", args[0], args[1], args[2])
	return Result{Message: fmt.Sprintf("beam %s %s %s sent", args[0], args[1], args[2])}, nil
}

// simTickLimit bounds the dry-run simulation.
const simTickLimit = 4 << 20

// executeSim dry-runs one sweep through the cycle-stepped 8-lane array at
// the configured bus divider. No register is touched; the result reports
// the wire time in reference ticks and any faulted elements.
func (e *Executor) executeSim(args []string) (Result, error) {
	if len(args) != 3 {
		return Result{}, fmt.Errorf("spiwrite: usage: sim <az> <el> <tx|rx>")
	}
	cmd, err := parseBeamCommand(args)
	if err != nil {
		return Result{}, err
	}
	a, err := array.New(array.Config{Bus: spibus.Config{Divider: e.busDivider}}, e.provider)
	if err != nil {
		return Result{}, err
	}

	var done [beam.Lanes]bool
	for tick := 0; tick < simTickLimit; tick++ {
		res := a.Step(tick == 0, cmd)
		for lane := range res {
			if res[lane].State.Done {
				done[lane] = true
			}
		}
		if tick == 0 {
			continue
		}
		idle := true
		for _, s := range a.States() {
			if s.Busy {
				idle = false
				break
			}
		}
		if !idle {
			continue
		}
		faults := 0
		for lane := 0; lane < beam.Lanes; lane++ {
			if !done[lane] {
				return Result{}, fmt.Errorf("spiwrite: lane %d finished without a done pulse", lane)
			}
			l, err := a.Lane(lane)
			if err != nil {
				return Result{}, err
			}
			n, _ := l.Sweep.Faults()
			faults += n
		}
		return Result{
			Message: fmt.Sprintf("sim complete: %d ticks at divider %d, %d faulted elements", tick+1, e.busDivider, faults),
		}, nil
	}
	return Result{}, fmt.Errorf("spiwrite: simulation exceeded %d ticks", simTickLimit)
}

// executeBinary loads a bulk payload: unwrap compression, expand to per-bus
// frames, load each bus.
func (e *Executor) executeBinary(payload string) (Result, error) {
	data, err := DecodePayload([]byte(payload))
	if err != nil {
		return Result{}, err
	}
	buses, err := BulkFrames(data)
	if err != nil {
		return Result{}, err
	}
	total := 0
	for bus, frames := range buses {
		if err := e.loader.InitBus(bus); err != nil {
			return Result{}, err
		}
		if err := e.loader.LoadBus(bus, frames); err != nil {
			return Result{}, err
		}
		total += len(frames)
	}
	return Result{Message: fmt.Sprintf("bulk write complete: %d frames over %d buses", total, len(buses))}, nil
}

func parseHex32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("spiwrite: bad hex value %q: %w", s, err)
	}
	return uint32(v), nil
}
