package voice

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"voxmate/app/config"

	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// Clip is decoded audio ready for playback, samples interleaved by channel.
type Clip struct {
	Samples    []float32
	Channels   int
	SampleRate int
	Duration   time.Duration
}

func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}

	return len(c.Samples) / c.Channels
}

func DecodeWAV(data []byte) (*Clip, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file")
	}

	decoder.ReadInfo()
	if decoder.NumChans == 0 || decoder.SampleRate == 0 || decoder.BitDepth == 0 {
		return nil, fmt.Errorf("wav file has no audio format")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode pcm: %w", err)
	}

	scale := float32(int64(1) << (decoder.BitDepth - 1))
	if decoder.BitDepth == 8 {
		// 8-bit wav is unsigned
		for i, s := range buf.Data {
			buf.Data[i] = s - 128
		}
	}

	samples := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = float32(s) / scale
	}

	clip := &Clip{
		Samples:    samples,
		Channels:   int(decoder.NumChans),
		SampleRate: int(decoder.SampleRate),
	}
	clip.Duration = time.Duration(clip.Frames()) * time.Second / time.Duration(clip.SampleRate)

	return clip, nil
}

// Speaker plays clips on the default output device.
type Speaker struct {
	chunkFrames int
}

func NewSpeaker(di *do.Injector) (*Speaker, error) {
	cfg := do.MustInvoke[*config.Config](di)

	if err := portaudio.Initialize(); err != nil {
		return nil, oops.Errorf("failed to initialize portaudio: %w", err)
	}

	return &Speaker{
		chunkFrames: cfg.Voice.ChunkFrames,
	}, nil
}

// Play blocks until the whole clip has been written to the device.
func (s *Speaker) Play(ctx context.Context, clip *Clip) error {
	out := make([]float32, s.chunkFrames*clip.Channels)

	stream, err := portaudio.OpenDefaultStream(0, clip.Channels, float64(clip.SampleRate), s.chunkFrames, out)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	defer stream.Close()

	if err = stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	for offset := 0; offset < len(clip.Samples); offset += len(out) {
		if err = ctx.Err(); err != nil {
			_ = stream.Abort()
			return err
		}

		n := copy(out, clip.Samples[offset:])
		clear(out[n:])

		if err = stream.Write(); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
	}

	if err = stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop output stream: %w", err)
	}

	return nil
}

func (s *Speaker) Shutdown() error {
	return portaudio.Terminate()
}
