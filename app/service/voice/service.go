package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voxmate/app/client/f5tts"
	"voxmate/app/config"

	"github.com/samber/do"
	"github.com/spf13/afero"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type Player interface {
	Play(ctx context.Context, clip *Clip) error
}

type Service struct {
	synth   Synthesizer
	player  Player
	journal *Journal
	now     func() time.Time
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWith(
		do.MustInvoke[*f5tts.Client](di),
		do.MustInvoke[*Speaker](di),
		NewJournal(afero.NewOsFs(), cfg.Log.Dir),
	), nil
}

func NewWith(synth Synthesizer, player Player, journal *Journal) *Service {
	return &Service{
		synth:   synth,
		player:  player,
		journal: journal,
		now:     time.Now,
	}
}

// Speak synthesizes text in the reference voice and blocks until it has been
// played. Every round trip is journaled, failed or not.
func (s *Service) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	startTime := s.now()
	entry := Entry{At: startTime, TextLen: len(text)}

	defer func() {
		entry.Total = s.now().Sub(startTime)
		if err := s.journal.Append(entry); err != nil {
			slog.Warn("Failed to append tts journal", "error", err)
		}
	}()

	audio, err := s.synth.Synthesize(ctx, text)
	entry.Synthesis = s.now().Sub(startTime)
	if err != nil {
		entry.Err = err
		slog.Error("Speech synthesis failed", "error", err)
		return fmt.Errorf("failed to synthesize speech: %w", err)
	}

	clip, err := DecodeWAV(audio)
	if err != nil {
		entry.Err = err
		slog.Error("Failed to decode synthesized audio", "error", err)
		return fmt.Errorf("failed to decode speech: %w", err)
	}
	entry.Audio = clip.Duration

	slog.Debug("Speaking",
		"text", text,
		"synthesis", entry.Synthesis,
		"audio", clip.Duration,
	)

	if err = s.player.Play(ctx, clip); err != nil {
		entry.Err = err
		slog.Error("Playback failed", "error", err)
		return fmt.Errorf("failed to play speech: %w", err)
	}

	return nil
}
