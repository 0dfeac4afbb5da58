//go:build !linux

package regs

import "fmt"

// Devmem is only available on Linux, where the peripheral's register window
// is exposed through /dev/mem.
type Devmem struct{}

func OpenDevmem(base, length uint32) (*Devmem, error) {
	return nil, fmt.Errorf("regs: /dev/mem access not supported on this platform")
}

func (d *Devmem) Write32(addr, value uint32) error { return fmt.Errorf("regs: not supported") }

func (d *Devmem) Read32(addr uint32) (uint32, error) { return 0, fmt.Errorf("regs: not supported") }

func (d *Devmem) Close() error { return nil }
