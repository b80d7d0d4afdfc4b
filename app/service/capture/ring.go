package capture

// Ring keeps the most recent samples, used as pre-roll before speech onset.
type Ring struct {
	buffer []int16
	head   int
	filled int
}

func NewRing(size int) *Ring {
	return &Ring{
		buffer: make([]int16, size),
	}
}

func (r *Ring) Add(samples []int16) {
	if len(r.buffer) == 0 {
		return
	}

	for _, s := range samples {
		r.buffer[r.head] = s
		r.head = (r.head + 1) % len(r.buffer)
	}

	r.filled = min(r.filled+len(samples), len(r.buffer))
}

// Read returns the buffered samples, oldest first.
func (r *Ring) Read() []int16 {
	samples := make([]int16, r.filled)
	start := r.head - r.filled + len(r.buffer)

	for i := 0; i < r.filled; i++ {
		samples[i] = r.buffer[(start+i)%len(r.buffer)]
	}

	return samples
}
