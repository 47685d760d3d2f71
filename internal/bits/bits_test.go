package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadWrite(t *testing.T) {
	buf := make([]byte, 4)
	Write(buf, 0, 3, 13, 0x1FFF)
	assert.EqualValues(t, 0x1FFF, Read(buf, 0, 3, 13))
	// Neighbouring bits untouched
	assert.EqualValues(t, 0, Read(buf, 0, 0, 3))
	assert.EqualValues(t, 0, Read(buf, 2, 0, 16))
}

func TestWriteCrossByte(t *testing.T) {
	buf := make([]byte, 2)
	Write(buf, 0, 6, 4, 0b1011)
	assert.Equal(t, byte(0b11000000), buf[0])
	assert.Equal(t, byte(0b00000010), buf[1])
	assert.EqualValues(t, 0b1011, Read(buf, 0, 6, 4))
}

func TestWriteClearsOldBits(t *testing.T) {
	buf := []byte{0xFF, 0xFF}
	Write(buf, 0, 4, 8, 0)
	assert.EqualValues(t, 0, Read(buf, 0, 4, 8))
	assert.EqualValues(t, 0xF, Read(buf, 0, 0, 4))
	assert.EqualValues(t, 0xF, Read(buf, 1, 4, 4))
}

func TestCopy(t *testing.T) {
	src := []byte{0b10101010, 0b01010101}
	dst := make([]byte, 2)
	Copy(dst, 3, src, 1, 10)
	assert.EqualValues(t, Read(src, 0, 1, 10), Read(dst, 0, 3, 10))
}
