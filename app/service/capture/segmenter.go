package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"

	"github.com/mjibson/go-dsp/fft"
)

const (
	defaultFrameSize = 512

	bandLow  = 300.0
	bandHigh = 3400.0
)

var ErrNoSpeech = errors.New("audio ended before speech onset")

// Segmenter cuts one utterance out of a PCM stream using speech-band energy.
type Segmenter struct {
	SampleRate int
	// Samples per analysis frame
	FrameSize int
	// Band energy at or above which a frame counts as speech
	Threshold float64
	Pause     time.Duration
	PreRoll   time.Duration
	MaxPhrase time.Duration
}

// BandEnergy returns the RMS amplitude of the 300-3400 Hz band of the frame.
func BandEnergy(frame []int16, sampleRate int) float64 {
	n := len(frame)
	if n == 0 {
		return 0
	}

	samples := make([]float64, n)
	for i, s := range frame {
		samples[i] = float64(s)
	}

	spectrum := fft.FFTReal(samples)
	binWidth := float64(sampleRate) / float64(n)

	var power float64
	for k := 1; k < n/2; k++ {
		freq := float64(k) * binWidth
		if freq < bandLow || freq > bandHigh {
			continue
		}

		re, im := real(spectrum[k]), imag(spectrum[k])
		power += re*re + im*im
	}

	return math.Sqrt(2 * power / float64(n*n))
}

func (s *Segmenter) frameSize() int {
	if s.FrameSize > 0 {
		return s.FrameSize
	}

	return defaultFrameSize
}

func (s *Segmenter) framesIn(d time.Duration) int {
	samples := d.Seconds() * float64(s.SampleRate)
	return int(math.Ceil(samples / float64(s.frameSize())))
}

// Ambient returns the mean band energy of the stream over the window.
func (s *Segmenter) Ambient(ctx context.Context, r io.Reader, window time.Duration) (float64, error) {
	frame := make([]int16, s.frameSize())
	raw := make([]byte, len(frame)*2)

	total := max(s.framesIn(window), 1)
	var sum float64
	var count int

	for count < total {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if err := readFrame(r, raw, frame); err != nil {
			if isEOF(err) && count > 0 {
				break
			}

			return 0, err
		}

		sum += BandEnergy(frame, s.SampleRate)
		count++
	}

	return sum / float64(count), nil
}

// Segment blocks until an utterance is complete: speech onset, then Pause of
// silence or MaxPhrase of audio. The returned samples include up to PreRoll of
// audio from before the onset.
func (s *Segmenter) Segment(ctx context.Context, r io.Reader) ([]int16, error) {
	size := s.frameSize()
	frame := make([]int16, size)
	raw := make([]byte, size*2)

	preRoll := NewRing(int(s.PreRoll.Seconds() * float64(s.SampleRate)))
	pauseFrames := max(s.framesIn(s.Pause), 1)
	maxFrames := max(s.framesIn(s.MaxPhrase), 1)

	var (
		segment  []int16
		heard    bool
		spoken   int
		silently int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := readFrame(r, raw, frame); err != nil {
			if isEOF(err) {
				if heard {
					return segment, nil
				}

				return nil, ErrNoSpeech
			}

			return nil, err
		}

		speech := BandEnergy(frame, s.SampleRate) >= s.Threshold

		if !heard {
			if !speech {
				preRoll.Add(frame)
				continue
			}

			heard = true
			segment = append(preRoll.Read(), frame...)
			spoken = 1

			continue
		}

		segment = append(segment, frame...)
		spoken++

		if speech {
			silently = 0
		} else {
			silently++
		}

		if silently >= pauseFrames || spoken >= maxFrames {
			return segment, nil
		}
	}
}

func readFrame(r io.Reader, raw []byte, frame []int16) error {
	if _, err := io.ReadFull(r, raw); err != nil {
		return err
	}

	for i := range frame {
		frame[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	return nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
