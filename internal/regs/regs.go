// Package regs provides 32-bit access to the memory-mapped beam-steering
// peripheral. The production implementation maps /dev/mem; a mock register
// space stands in for it in tests and dev mode.
package regs

// Writer performs aligned 32-bit register accesses against physical
// addresses.
type Writer interface {
	Write32(addr, value uint32) error
	Read32(addr uint32) (uint32, error)
}
