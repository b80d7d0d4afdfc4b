package speechkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunks(t *testing.T) {
	chunks := Chunks([]int16{1, -1, 256, 3, 4}, 2)

	assert.Equal(t, [][]byte{
		{0x01, 0x00, 0xff, 0xff},
		{0x00, 0x01, 0x03, 0x00},
		{0x04, 0x00},
	}, chunks)
}

func TestChunks_Empty(t *testing.T) {
	assert.Empty(t, Chunks(nil, 2048))
}
