// Package beam holds the shared data model of the steering pipeline: the
// commanded beam direction, per-element geometry and bus addressing, the
// quantised phase result, and the 5-byte command frame that goes out on the
// wire. The lookup tables in this package are immutable after init; the
// addressing and geometry functions are pure functions of (row, column,
// mode) and are never recomputed mid-transmission.
package beam

import (
	"fmt"

	"github.com/vk-instruments/spibeam/internal/fixed"
)

// Aperture dimensions: a 32x32 element grid, partitioned into 8 lanes of
// 4 columns each.
const (
	Rows        = 32
	Columns     = 32
	Lanes       = 8
	LaneColumns = 4
	// LaneElements is the element count one lane owns per sweep.
	LaneElements = Rows * LaneColumns
)

// Element spacing in millimetres. Transmit and receive panels use different
// pitches, so the geometry tables are tabulated per mode.
const (
	SpacingTxMm = 5.0
	SpacingRxMm = 7.5
)

// Command is the beam direction commanded for one sweep. It is supplied
// once by the external driver and immutable while the sweep runs.
type Command struct {
	// Azimuth in unsigned Q9.7 degrees, [0, 360).
	Azimuth fixed.Degrees
	// Elevation in unsigned Q9.7 degrees, [0, 90].
	Elevation fixed.Degrees
	// Transmit selects the transmit panel; false selects receive.
	Transmit bool
}

// PhaseResult is the quantised steering phase for one element. It is
// produced once, consumed immediately, and not retained.
type PhaseResult struct {
	// Turns is the signed Q1.31 fractional-turn phase; wraps at ±1 turn.
	Turns fixed.Turns
	// Index is the 6-bit phase command on the 5.625° grid, [0, 63].
	Index uint8
}

// Geometry is an element's physical offset from the aperture corner.
type Geometry struct {
	Row    int // 0..31
	Column int // lane-local, 0..3
	// XOffset and YOffset are Q9.7 millimetres.
	XOffset fixed.Millimetres
	YOffset fixed.Millimetres
}

// Address identifies the beamformer chip and channel an element's command
// frame is delivered to.
type Address struct {
	ChipID    uint8 // 0..63
	ChannelID uint8 // one of the 8 fixed channel byte codes
}

// LaneState is the externally visible per-lane sweep status.
type LaneState struct {
	Row    int
	Column int // lane-local
	Busy   bool
	Done   bool
}

// LaneColumnBase returns the global column index of a lane's first column.
// Lane 7 owns columns 0-3 and lane 0 owns columns 28-31; the partition is
// an address-space invariant of the array.
func LaneColumnBase(lane int) (int, error) {
	if lane < 0 || lane >= Lanes {
		return 0, fmt.Errorf("beam: lane %d out of range [0,%d]", lane, Lanes-1)
	}
	return (Lanes - 1 - lane) * LaneColumns, nil
}

// Offset tables, tabulated once at init instead of multiplied at runtime.
// Offsets grow from the aperture corner: element (row, col) sits at
// (col*d, row*d) for the mode's pitch d. The Q9.7 products are exact since
// both pitches are multiples of 1/128 mm.
var (
	rowOffsetTx [Rows]fixed.Millimetres
	rowOffsetRx [Rows]fixed.Millimetres
	colOffsetTx [Columns]fixed.Millimetres
	colOffsetRx [Columns]fixed.Millimetres
)

func init() {
	for i := 0; i < Rows; i++ {
		rowOffsetTx[i] = fixed.MillimetresFromFloat(float64(i) * SpacingTxMm)
		rowOffsetRx[i] = fixed.MillimetresFromFloat(float64(i) * SpacingRxMm)
	}
	for i := 0; i < Columns; i++ {
		colOffsetTx[i] = fixed.MillimetresFromFloat(float64(i) * SpacingTxMm)
		colOffsetRx[i] = fixed.MillimetresFromFloat(float64(i) * SpacingRxMm)
	}
}

// GeometryOf returns the physical offsets of the element at (row, column)
// within the given lane. Row is 0..31, column lane-local 0..3.
func GeometryOf(lane, row, column int, transmit bool) (Geometry, error) {
	base, err := LaneColumnBase(lane)
	if err != nil {
		return Geometry{}, err
	}
	if row < 0 || row >= Rows {
		return Geometry{}, fmt.Errorf("beam: row %d out of range [0,%d]", row, Rows-1)
	}
	if column < 0 || column >= LaneColumns {
		return Geometry{}, fmt.Errorf("beam: lane column %d out of range [0,%d]", column, LaneColumns-1)
	}
	g := Geometry{Row: row, Column: column}
	if transmit {
		g.XOffset = colOffsetTx[base+column]
		g.YOffset = rowOffsetTx[row]
	} else {
		g.XOffset = colOffsetRx[base+column]
		g.YOffset = rowOffsetRx[row]
	}
	return g, nil
}

// Channel byte codes, keyed by mode and column parity, indexed by row mod 4.
// Odd columns walk the same codes in reverse order.
var (
	channelTx = [2][4]uint8{
		{0x27, 0x3F, 0x47, 0x5F},
		{0x5F, 0x47, 0x3F, 0x27},
	}
	channelRx = [2][4]uint8{
		{0x22, 0x3A, 0x42, 0x5A},
		{0x5A, 0x42, 0x3A, 0x22},
	}
)

// AddressOf returns the chip and channel for the element at (row, column),
// column lane-local. The mapping is identical across lanes.
func AddressOf(row, column int, transmit bool) Address {
	chip := uint8(row >> 1)
	if column < 2 {
		chip += 16
	}
	table := &channelRx
	if transmit {
		table = &channelTx
	}
	return Address{
		ChipID:    chip,
		ChannelID: table[column&1][row&3],
	}
}
