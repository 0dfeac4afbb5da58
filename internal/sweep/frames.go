// Package sweep iterates one lane's 128 elements for a commanded beam
// direction: it derives each element's geometry and bus address, runs the
// phase calculator, and assembles the 5-byte command frames in strict
// row-major order (rows outer, lane-local columns inner).
//
// Two forms are provided behind the same data contract: LaneFrames, a pure
// end-to-end transform with no timing model, and Controller, the
// cycle-stepped state machine that feeds a serial encoder under
// backpressure.
package sweep

import (
	"fmt"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/phase"
	"github.com/vk-instruments/spibeam/internal/trig"
)

// LaneFrames computes the ordered command frame sequence one lane emits for
// a sweep. Identical command and geometry give a byte-identical sequence on
// every call. The only error source is a trig primitive fault, reported
// with the element that hit it.
func LaneFrames(cmd beam.Command, lane int, tp trig.Provider) ([]beam.Frame, error) {
	frames := make([]beam.Frame, 0, beam.LaneElements)
	for row := 0; row < beam.Rows; row++ {
		for col := 0; col < beam.LaneColumns; col++ {
			g, err := beam.GeometryOf(lane, row, col, cmd.Transmit)
			if err != nil {
				return nil, err
			}
			res, err := phase.Calculate(cmd, g, tp)
			if err != nil {
				return nil, fmt.Errorf("lane %d element row=%d col=%d: %w", lane, row, col, err)
			}
			frames = append(frames, beam.NewFrame(
				beam.AddressOf(row, col, cmd.Transmit),
				beam.PackValue(res.Index, cmd.Transmit),
			))
		}
	}
	return frames, nil
}
