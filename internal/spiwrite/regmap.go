// Package spiwrite programs the beam-steering peripheral's AXI FIFO block:
// it streams element command frames into the per-bus FIFOs and drives the
// global send sequence. It also implements the operator command surface
// (text commands and compressed BINARY bulk payloads) used by the console
// and UDP runners.
package spiwrite

import "fmt"

// Physical register map of the FIFO block. One global control window plus
// one window per bus, 0x10000 apart.
const (
	GlobalBase uint32 = 0x43C00000
	BusBase    uint32 = 0x43C40000
	BusStride  uint32 = 0x10000

	// Global window offsets.
	regSendMask uint32 = 0x14
	regSendLen  uint32 = 0x18
	regExecute  uint32 = 0x1C

	// Per-bus window offsets.
	regIrq       uint32 = 0x00
	regRemaining uint32 = 0x0C
	regData      uint32 = 0x10
	regCount     uint32 = 0x14
	regInit      uint32 = 0x2C
)

// Programming constants the device expects.
const (
	busInitValue   uint32 = 0x2
	busByteCount   uint32 = 0x280 // 128 frames of 5 bytes
	frameWireLen   uint32 = 0x5
	sendAllMask    uint32 = 0xFF
	executeValue   uint32 = 0x1
	irqClearValue  uint32 = 0xFFFFFFFF
	MappedWindow   uint32 = 0xC0000 // global base through bus 7
	busCount              = 8
)

// SendMaskAddr is the absolute address of the global send-mask register.
// The device clears it as buses finish sending, so emulated backends hook
// writes here to complete the handshake.
const SendMaskAddr = GlobalBase + regSendMask

func busAddr(bus int, offset uint32) (uint32, error) {
	if bus < 0 || bus >= busCount {
		return 0, fmt.Errorf("spiwrite: bus %d out of range [0,%d]", bus, busCount-1)
	}
	return BusBase + uint32(bus)*BusStride + offset, nil
}
