//go:build linux

package regs

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Devmem maps a physical register window through /dev/mem and performs
// 32-bit accesses against it. Accesses outside the mapped window or not
// 4-byte aligned are rejected.
type Devmem struct {
	mu     sync.Mutex
	fd     int
	mem    []byte
	base   uint32
	length uint32
}

// OpenDevmem maps length bytes of physical address space starting at base.
// The base must be page aligned.
func OpenDevmem(base, length uint32) (*Devmem, error) {
	pageSize := uint32(unix.Getpagesize())
	if base%pageSize != 0 {
		return nil, fmt.Errorf("regs: base 0x%08x not page aligned", base)
	}
	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("regs: open /dev/mem: %w", err)
	}
	mem, err := unix.Mmap(fd, int64(base), int(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("regs: mmap 0x%08x+0x%x: %w", base, length, err)
	}
	return &Devmem{fd: fd, mem: mem, base: base, length: length}, nil
}

func (d *Devmem) slot(addr uint32) (*uint32, error) {
	if addr%4 != 0 {
		return nil, fmt.Errorf("regs: address 0x%08x not 32-bit aligned", addr)
	}
	if addr < d.base || addr+4 > d.base+d.length {
		return nil, fmt.Errorf("regs: address 0x%08x outside mapped window [0x%08x,0x%08x)",
			addr, d.base, d.base+d.length)
	}
	return (*uint32)(unsafe.Pointer(&d.mem[addr-d.base])), nil
}

// Write32 stores value at the physical address as a single 32-bit access.
func (d *Devmem) Write32(addr, value uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.slot(addr)
	if err != nil {
		return err
	}
	atomic.StoreUint32(p, value)
	return nil
}

// Read32 loads the 32-bit register at the physical address.
func (d *Devmem) Read32(addr uint32) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.slot(addr)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(p), nil
}

// Close unmaps the register window and releases /dev/mem.
func (d *Devmem) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mem != nil {
		if err := unix.Munmap(d.mem); err != nil {
			return err
		}
		d.mem = nil
	}
	if d.fd >= 0 {
		if err := unix.Close(d.fd); err != nil {
			return err
		}
		d.fd = -1
	}
	return nil
}
