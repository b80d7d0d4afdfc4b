package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_Wraps(t *testing.T) {
	ring := NewRing(10)

	for i := 0; i < 20; i++ {
		ring.Add([]int16{int16(i)})
	}

	assert.Equal(t, []int16{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}, ring.Read())
}

func TestRing_PartiallyFilled(t *testing.T) {
	ring := NewRing(8)
	ring.Add([]int16{1, 2, 3})

	assert.Equal(t, []int16{1, 2, 3}, ring.Read())
}

func TestRing_ChunkLargerThanBuffer(t *testing.T) {
	ring := NewRing(4)
	ring.Add([]int16{1, 2, 3, 4, 5, 6})

	assert.Equal(t, []int16{3, 4, 5, 6}, ring.Read())
}

func TestRing_ZeroSize(t *testing.T) {
	ring := NewRing(0)
	ring.Add([]int16{1, 2})

	assert.Empty(t, ring.Read())
}
