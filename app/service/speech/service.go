package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voxmate/app/service/capture"

	"github.com/samber/do"
)

// ErrNoMatch means an utterance was captured but resolved to no text.
var ErrNoMatch = errors.New("speech not understood")

type Recognizer interface {
	Recognize(ctx context.Context, pcm []int16, sampleRate int) (string, error)
}

type Capturer interface {
	Calibrate(ctx context.Context) error
	Capture(ctx context.Context) ([]int16, error)
	SampleRate() int
}

type Service struct {
	capture    Capturer
	recognizer Recognizer
}

// New expects the Recognizer of the configured provider to be registered.
func New(di *do.Injector) (*Service, error) {
	return NewWithRecognizer(
		do.MustInvoke[*capture.Service](di),
		do.MustInvoke[Recognizer](di),
	), nil
}

func NewWithRecognizer(capturer Capturer, recognizer Recognizer) *Service {
	return &Service{
		capture:    capturer,
		recognizer: recognizer,
	}
}

func (s *Service) Calibrate(ctx context.Context) error {
	return s.capture.Calibrate(ctx)
}

// CaptureUtterance blocks until one utterance is recorded and recognized.
// Blank transcripts yield ErrNoMatch; anything else that fails is transient.
func (s *Service) CaptureUtterance(ctx context.Context) (string, error) {
	pcm, err := s.capture.Capture(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to capture audio: %w", err)
	}

	startTime := time.Now()

	text, err := s.recognizer.Recognize(ctx, pcm, s.capture.SampleRate())
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	text = strings.TrimSpace(text)

	slog.Debug("Recognized utterance",
		"text", text,
		"audio", time.Duration(len(pcm))*time.Second/time.Duration(s.capture.SampleRate()),
		"took", time.Since(startTime),
	)

	if text == "" {
		return "", ErrNoMatch
	}

	return text, nil
}
