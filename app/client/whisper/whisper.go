package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"voxmate/app/config"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const modelSampleRate = 16000

// Recognizer transcribes utterances locally with a whisper.cpp model.
type Recognizer struct {
	cfg   *config.Config
	model whisper.Model
	mu    sync.Mutex
}

func New(di *do.Injector) (*Recognizer, error) {
	cfg := do.MustInvoke[*config.Config](di)

	model, err := whisper.New(cfg.Speech.Whisper.ModelPath)
	if err != nil {
		return nil, oops.Errorf("failed to load whisper model: %w", err)
	}

	slog.Info("Loaded whisper model", "path", cfg.Speech.Whisper.ModelPath)

	return &Recognizer{
		cfg:   cfg,
		model: model,
	}, nil
}

func (r *Recognizer) Recognize(ctx context.Context, pcm []int16, sampleRate int) (string, error) {
	if sampleRate != modelSampleRate {
		return "", fmt.Errorf("whisper needs %d Hz audio, got %d Hz", modelSampleRate, sampleRate)
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wctx, err := r.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	if lang := r.cfg.Speech.Whisper.Language; lang != "" {
		if err := wctx.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("failed to set whisper language: %w", err)
		}
	}

	if err := wctx.Process(Normalize(pcm), nil); err != nil {
		return "", fmt.Errorf("whisper processing failed: %w", err)
	}

	var texts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read whisper segment: %w", err)
		}

		texts = append(texts, segment.Text)
	}

	return strings.Join(FilterSegments(texts), " "), nil
}

func (r *Recognizer) Shutdown() error {
	return r.model.Close()
}

// Normalize converts samples to the [-1, 1) float range whisper expects.
func Normalize(pcm []int16) []float32 {
	result := make([]float32, len(pcm))
	for i, s := range pcm {
		result[i] = float32(s) / 32768
	}

	return result
}

// FilterSegments drops non-speech annotations such as "[BLANK_AUDIO]" or
// "(music)" and repeated segments.
func FilterSegments(texts []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(texts))

	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if text[0] == '(' || text[0] == '[' || text[len(text)-1] == ')' || text[len(text)-1] == ']' {
			continue
		}

		if seen[text] {
			continue
		}
		seen[text] = true

		result = append(result, text)
	}

	return result
}
