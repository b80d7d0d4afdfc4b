package whisper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, []float32{0, 0.5, -1, 32767.0 / 32768}, Normalize([]int16{0, 16384, -32768, 32767}))
}

func TestFilterSegments(t *testing.T) {
	texts := []string{
		" [BLANK_AUDIO]",
		" Hey assistant,",
		"(keyboard clicking)",
		" Hey assistant,",
		"",
		" are you awake?",
		"*music* ]",
	}

	assert.Equal(t, []string{"Hey assistant,", "are you awake?"}, FilterSegments(texts))
}
