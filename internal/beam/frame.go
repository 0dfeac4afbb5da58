package beam

// FrameHeader is the first byte of every element command frame.
const FrameHeader = 0x28

// FrameBytes is the fixed command frame length on the wire.
const FrameBytes = 5

// Frame is one element's 5-byte command:
// [0x28][chipId][channelId][value>>8][value&0xFF].
// Downstream register drivers and the binary command protocol depend on
// this layout verbatim, so it must be reproduced byte for byte.
type Frame [FrameBytes]byte

// NewFrame assembles the command frame for an element.
func NewFrame(addr Address, value uint16) Frame {
	return Frame{
		FrameHeader,
		addr.ChipID,
		addr.ChannelID,
		byte(value >> 8),
		byte(value),
	}
}

// Value returns the 16-bit command value carried in the frame.
func (f Frame) Value() uint16 {
	return uint16(f[3])<<8 | uint16(f[4])
}

// PackValue builds the 16-bit command value from a 6-bit phase index. The
// bit layout differs per mode and carries no rounding:
//
//	transmit: [15:10]=index [9:8]=0b11 [7:1]=0x7F [0]=0
//	receive:  [15:10]=index [9:4]=0x3F [3]=1      [2:0]=0
func PackValue(index uint8, transmit bool) uint16 {
	v := uint16(index&0x3F) << 10
	if transmit {
		return v | 0x3<<8 | 0x7F<<1
	}
	return v | 0x3F<<4 | 1<<3
}
