package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"voxmate/app/config"

	"github.com/samber/do"
	"github.com/spf13/afero"
)

// Source yields raw s16le mono PCM. Every Open starts a new recording that
// ends when the returned reader is closed.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

type Service struct {
	cfg       config.Audio
	source    Source
	dumper    *Dumper
	segmenter Segmenter
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	var dumper *Dumper
	if cfg.Audio.DumpDir != "" {
		dumper = NewDumper(afero.NewOsFs(), cfg.Audio.DumpDir)
	}

	source := &Microphone{
		Format:     cfg.Audio.InputFormat,
		Device:     cfg.Audio.InputDevice,
		SampleRate: cfg.Audio.SampleRate,
	}

	return NewWithSource(cfg.Audio, source, dumper), nil
}

func NewWithSource(cfg config.Audio, source Source, dumper *Dumper) *Service {
	return &Service{
		cfg:    cfg,
		source: source,
		dumper: dumper,
		segmenter: Segmenter{
			SampleRate: cfg.SampleRate,
			FrameSize:  defaultFrameSize,
			Threshold:  cfg.EnergyFloor,
			Pause:      cfg.Pause,
			PreRoll:    cfg.PreRoll,
			MaxPhrase:  cfg.MaxPhrase,
		},
	}
}

func (s *Service) SampleRate() int {
	return s.cfg.SampleRate
}

func (s *Service) Threshold() float64 {
	return s.segmenter.Threshold
}

// Calibrate listens to the room for the calibration window and sets the speech
// threshold to the configured multiple of the ambient energy, never below the floor.
func (s *Service) Calibrate(ctx context.Context) error {
	stream, err := s.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	defer stream.Close()

	ambient, err := s.segmenter.Ambient(ctx, stream, s.cfg.Calibration)
	if err != nil {
		return fmt.Errorf("failed to measure ambient noise: %w", err)
	}

	s.segmenter.Threshold = max(s.cfg.EnergyFloor, ambient*s.cfg.EnergyRatio)

	slog.Info("Calibrated microphone",
		"ambient", ambient,
		"threshold", s.segmenter.Threshold,
	)

	return nil
}

// Capture records one utterance. The source is open only for its duration.
func (s *Service) Capture(ctx context.Context) ([]int16, error) {
	stream, err := s.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio source: %w", err)
	}

	samples, err := s.segmenter.Segment(ctx, stream)
	_ = stream.Close()
	if err != nil {
		return nil, err
	}

	if s.dumper != nil {
		name, err := s.dumper.Write(samples, s.cfg.SampleRate, time.Now())
		if err != nil {
			slog.Warn("Failed to dump utterance", "error", err)
		} else {
			slog.Debug("Dumped utterance", "file", name)
		}
	}

	return samples, nil
}
