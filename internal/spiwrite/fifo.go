package spiwrite

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/regs"
)

// Loader streams command frames into the per-bus FIFOs and drives the
// global send sequence against a register writer.
type Loader struct {
	wr regs.Writer
}

// NewLoader builds a loader over the given register space.
func NewLoader(wr regs.Writer) *Loader {
	return &Loader{wr: wr}
}

// InitBus arms one bus FIFO for loading and clears any pending interrupt.
func (l *Loader) InitBus(bus int) error {
	initAddr, err := busAddr(bus, regInit)
	if err != nil {
		return err
	}
	if err := l.wr.Write32(initAddr, busInitValue); err != nil {
		return fmt.Errorf("spiwrite: bus %d init: %w", bus, err)
	}
	irqAddr, _ := busAddr(bus, regIrq)
	if _, err := l.wr.Read32(irqAddr); err != nil {
		return fmt.Errorf("spiwrite: bus %d irq read: %w", bus, err)
	}
	if err := l.wr.Write32(irqAddr, irqClearValue); err != nil {
		return fmt.Errorf("spiwrite: bus %d irq clear: %w", bus, err)
	}
	return nil
}

// LoadBus packs the frames' bytes big-endian four per word, writes them to
// the bus data register, and latches the byte count. The total byte count
// must be word aligned; a full lane sweep of 128 frames always is.
func (l *Loader) LoadBus(bus int, frames []beam.Frame) error {
	dataAddr, err := busAddr(bus, regData)
	if err != nil {
		return err
	}
	total := len(frames) * beam.FrameBytes
	if total%4 != 0 {
		return fmt.Errorf("spiwrite: bus %d payload of %d bytes is not word aligned", bus, total)
	}

	raw := make([]byte, 0, total)
	for _, f := range frames {
		raw = append(raw, f[:]...)
	}
	for off := 0; off < len(raw); off += 4 {
		word := binary.BigEndian.Uint32(raw[off:])
		if err := l.wr.Write32(dataAddr, word); err != nil {
			return fmt.Errorf("spiwrite: bus %d data word %d: %w", bus, off/4, err)
		}
	}

	countAddr, _ := busAddr(bus, regCount)
	if err := l.wr.Write32(countAddr, uint32(total)); err != nil {
		return fmt.Errorf("spiwrite: bus %d byte count: %w", bus, err)
	}
	return nil
}

// LoadSweep loads every lane's frame sequence into its bus FIFO. Lane i
// feeds bus i.
func (l *Loader) LoadSweep(frames [beam.Lanes][]beam.Frame) error {
	for bus := 0; bus < beam.Lanes; bus++ {
		if err := l.InitBus(bus); err != nil {
			return err
		}
		if err := l.LoadBus(bus, frames[bus]); err != nil {
			return err
		}
	}
	return nil
}

// Remaining reads the bus FIFO's unread byte count.
func (l *Loader) Remaining(bus int) (uint32, error) {
	addr, err := busAddr(bus, regRemaining)
	if err != nil {
		return 0, err
	}
	return l.wr.Read32(addr)
}

// Execute triggers transmission of all loaded FIFOs: frame length, execute
// strobe, then the all-buses send mask. It then polls the send mask until
// the device clears it, backing off exponentially, and finally logs each
// bus's remaining byte count.
func (l *Loader) Execute(ctx context.Context) error {
	if err := l.wr.Write32(GlobalBase+regSendLen, frameWireLen); err != nil {
		return fmt.Errorf("spiwrite: send length: %w", err)
	}
	if err := l.wr.Write32(GlobalBase+regExecute, executeValue); err != nil {
		return fmt.Errorf("spiwrite: execute: %w", err)
	}
	if err := l.wr.Write32(GlobalBase+regSendMask, sendAllMask); err != nil {
		return fmt.Errorf("spiwrite: send mask: %w", err)
	}

	poll := func() error {
		v, err := l.wr.Read32(GlobalBase + regSendMask)
		if err != nil {
			return backoff.Permanent(err)
		}
		if v != 0 {
			return fmt.Errorf("spiwrite: send in progress, mask 0x%02x", v)
		}
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(poll, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("spiwrite: send did not complete: %w", err)
	}

	for bus := 0; bus < busCount; bus++ {
		remaining, err := l.Remaining(bus)
		if err != nil {
			return err
		}
		log.Printf("bus %d remaining FIFO bytes: 0x%x", bus, remaining)
	}
	return nil
}
