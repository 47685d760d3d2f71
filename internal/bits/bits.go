// Package bits reads and writes bit granular fields inside a process image
// buffer. Fields are little endian and may cross byte boundaries.
package bits

// Read extracts length bits starting at the given byte and bit offset.
// length must be 64 or less.
func Read(buf []byte, byteOffset int, bitOffset uint8, length uint16) uint64 {
	var value uint64
	pos := byteOffset*8 + int(bitOffset)
	for i := 0; i < int(length); i++ {
		byteIdx := (pos + i) / 8
		bitIdx := uint((pos + i) % 8)
		if buf[byteIdx]&(1<<bitIdx) != 0 {
			value |= 1 << uint(i)
		}
	}
	return value
}

// Write stores the lowest length bits of value at the given byte and bit
// offset. length must be 64 or less.
func Write(buf []byte, byteOffset int, bitOffset uint8, length uint16, value uint64) {
	pos := byteOffset*8 + int(bitOffset)
	for i := 0; i < int(length); i++ {
		byteIdx := (pos + i) / 8
		bitIdx := uint((pos + i) % 8)
		if value&(1<<uint(i)) != 0 {
			buf[byteIdx] |= 1 << bitIdx
		} else {
			buf[byteIdx] &^= 1 << bitIdx
		}
	}
}

// Copy moves length bits from src at srcPos to dst at dstPos.
// Positions are absolute bit positions inside the buffers.
func Copy(dst []byte, dstPos int, src []byte, srcPos int, length int) {
	for i := 0; i < length; i++ {
		srcByte := (srcPos + i) / 8
		srcBit := uint((srcPos + i) % 8)
		dstByte := (dstPos + i) / 8
		dstBit := uint((dstPos + i) % 8)
		if src[srcByte]&(1<<srcBit) != 0 {
			dst[dstByte] |= 1 << dstBit
		} else {
			dst[dstByte] &^= 1 << dstBit
		}
	}
}
