package phase

import (
	"fmt"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/fixed"
	"github.com/vk-instruments/spibeam/internal/trig"
)

// Config carries the per-stage alignment delays of the cycle-stepped
// pipeline. The zero value models every stage at its minimum latency.
type Config struct {
	// ConvInputDelay and ConvOutputDelay align the degree converters.
	ConvInputDelay  int
	ConvOutputDelay int
	// MultInputDelay and MultOutputDelay apply to all product stages.
	MultInputDelay  int
	MultOutputDelay int
}

// Pipeline is the cycle-stepped PhaseCalculator. A Start call latches the
// element inputs; the result pulses valid exactly Latency() steps later,
// with busy held in between. At most one element is in flight.
type Pipeline struct {
	provider trig.Provider

	convAz *fixed.DegreeConverter
	convEl *fixed.DegreeConverter

	trigLine  *fixed.DelayLine[trigStage]
	xLine     *fixed.DelayLine[fixed.Millimetres]
	yLine     *fixed.DelayLine[fixed.Millimetres]
	modeLine  *fixed.DelayLine[bool]
	cosElLine *fixed.DelayLine[fixed.Sample]
	kLine     *fixed.DelayLine[bool]
	faultLine *fixed.DelayLine[bool]

	mulX  *fixed.Multiplier
	mulY  *fixed.Multiplier
	mulEl *fixed.Multiplier
	mulK  *fixed.Multiplier

	reg4 *fixed.DelayLine[crossStage]
	reg5 *fixed.DelayLine[preStage]

	latency int

	// start pulse and latched element inputs
	start bool
	az    fixed.Degrees
	el    fixed.Degrees
	x     fixed.Millimetres
	y     fixed.Millimetres
	tx    bool
	busy  bool
}

type trigStage struct {
	sinAz, cosAz fixed.Sample
	cosEl        fixed.Sample
	fault        bool
	valid        bool
}

type crossStage struct {
	xc, ys int32
	valid  bool
}

type preStage struct {
	t     int32
	valid bool
}

// NewPipeline builds a cycle-stepped calculator over the given trig
// provider.
func NewPipeline(cfg Config, provider trig.Provider) (*Pipeline, error) {
	if provider == nil {
		return nil, fmt.Errorf("phase: nil trig provider")
	}
	convAz, err := fixed.NewDegreeConverter(cfg.ConvInputDelay, cfg.ConvOutputDelay)
	if err != nil {
		return nil, err
	}
	convEl, err := fixed.NewDegreeConverter(cfg.ConvInputDelay, cfg.ConvOutputDelay)
	if err != nil {
		return nil, err
	}
	newMult := func() (*fixed.Multiplier, error) {
		return fixed.NewMultiplier(cfg.MultInputDelay, cfg.MultOutputDelay)
	}
	mulX, err := newMult()
	if err != nil {
		return nil, err
	}
	mulY, _ := newMult()
	mulEl, _ := newMult()
	mulK, _ := newMult()

	lConv := convAz.Latency()
	lTrig := provider.Latency()
	lMult := mulX.Latency()

	p := &Pipeline{
		provider:  provider,
		convAz:    convAz,
		convEl:    convEl,
		trigLine:  fixed.NewDelayLine[trigStage](lTrig),
		xLine:     fixed.NewDelayLine[fixed.Millimetres](lConv + lTrig),
		yLine:     fixed.NewDelayLine[fixed.Millimetres](lConv + lTrig),
		modeLine:  fixed.NewDelayLine[bool](lConv + lTrig),
		cosElLine: fixed.NewDelayLine[fixed.Sample](lMult + 2),
		kLine:     fixed.NewDelayLine[bool](2*lMult + 2),
		faultLine: fixed.NewDelayLine[bool](3*lMult + 2),
		mulX:      mulX,
		mulY:      mulY,
		mulEl:     mulEl,
		mulK:      mulK,
		reg4:      fixed.NewDelayLine[crossStage](1),
		reg5:      fixed.NewDelayLine[preStage](1),
		latency:   lConv + lTrig + 3*lMult + 2,
	}
	return p, nil
}

// Latency returns the step count between Start and the valid output pulse:
// converter latency + trig latency + three multiplier latencies + two
// pipeline registers.
func (p *Pipeline) Latency() int { return p.latency }

// Busy reports whether an element is in flight.
func (p *Pipeline) Busy() bool { return p.busy }

// Start latches one element's inputs and raises busy. Starting while busy
// panics: the sweep controller guarantees a single element in flight, so a
// double start is a wiring bug.
func (p *Pipeline) Start(cmd beam.Command, g beam.Geometry) {
	if p.busy {
		panic("phase: start while busy")
	}
	p.az = cmd.Azimuth
	p.el = cmd.Elevation
	p.x = g.XOffset
	p.y = g.YOffset
	p.tx = cmd.Transmit
	p.start = true
	p.busy = true
}

// Step advances the pipeline one global time-step. The returned flag pulses
// true for exactly one step, Latency() steps after Start; the error is
// non-nil on that same pulse if the trig primitive faulted for this
// element.
func (p *Pipeline) Step() (beam.PhaseResult, bool, error) {
	// Stage 1: degree conversion. Both converters run in lock-step, so one
	// validity flag covers the pair.
	azCode, convOK := p.convAz.Step(p.az, p.start)
	elCode, _ := p.convEl.Step(p.el, p.start)

	// Stage 3 feeds: raw x, y, mode enter their alignment lines on the
	// start pulse and emerge together with the trig outputs.
	var xIn, yIn fixed.Millimetres
	var txIn bool
	if p.start {
		xIn, yIn, txIn = p.x, p.y, p.tx
	}
	x := p.xLine.Step(xIn)
	y := p.yLine.Step(yIn)
	tx := p.modeLine.Step(txIn)
	p.start = false

	// Stage 2: trig lookup is combinational; its fixed latency is modelled
	// by the delay line behind it.
	var ts trigStage
	if convOK {
		sinAz, cosAz, faultAz := p.provider.SinCos(azCode)
		_, cosEl, faultEl := p.provider.SinCos(elCode)
		ts = trigStage{sinAz: sinAz, cosAz: cosAz, cosEl: cosEl, fault: faultAz || faultEl, valid: true}
	}
	tout := p.trigLine.Step(ts)

	// cos(el) and the mode flag continue on their own alignment lines to
	// meet the later product stages.
	cosEl := p.cosElLine.Step(tout.cosEl)
	txK := p.kLine.Step(tx)

	// The fault flag rides its own alignment line so it lands exactly on
	// the output pulse.
	faultOut := p.faultLine.Step(tout.fault)

	// Stage 4: x*cos(az) and y*sin(az), Q10.22 truncated to Q10.14, then a
	// pipeline register.
	xc64, mOK := p.mulX.Step(int64(x), int64(tout.cosAz), tout.valid)
	ys64, _ := p.mulY.Step(int64(y), int64(tout.sinAz), tout.valid)
	r4 := p.reg4.Step(crossStage{
		xc:    int32(xc64) >> 8,
		ys:    int32(ys64) >> 8,
		valid: mOK,
	})

	// Stage 5: subtraction register, Q10.14.
	r5 := p.reg5.Step(preStage{t: r4.xc - r4.ys, valid: r4.valid})

	// Stage 6: scale by cos(el), Q11.29 truncated to Q11.14.
	tEl64, elOK := p.mulEl.Step(int64(r5.t), int64(cosEl), r5.valid)
	tEl := tEl64 >> 15

	// Stage 7: multiply by the mode's Kturn; low 32 bits are the Q1.31
	// fractional turn.
	k := int64(KTurnRx)
	if txK {
		k = int64(KTurnTx)
	}
	prod, outOK := p.mulK.Step(tEl, k, elOK)

	if !outOK {
		return beam.PhaseResult{}, false, nil
	}
	p.busy = false
	if faultOut {
		return beam.PhaseResult{}, true, ErrTrigFault
	}
	turns := fixed.Turns(int32(uint32(uint64(prod))))
	return beam.PhaseResult{Turns: turns, Index: Index(turns)}, true, nil
}

// Reset unconditionally discards all in-flight state and returns the
// pipeline to idle.
func (p *Pipeline) Reset() {
	p.convAz.Reset()
	p.convEl.Reset()
	p.trigLine.Reset()
	p.xLine.Reset()
	p.yLine.Reset()
	p.modeLine.Reset()
	p.cosElLine.Reset()
	p.kLine.Reset()
	p.faultLine.Reset()
	p.mulX.Reset()
	p.mulY.Reset()
	p.mulEl.Reset()
	p.mulK.Reset()
	p.reg4.Reset()
	p.reg5.Reset()
	p.start = false
	p.busy = false
}
