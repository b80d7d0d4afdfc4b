package reply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"voxmate/app/config"
	"voxmate/app/service/conversation"

	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

var ErrEmptyReply = errors.New("model returned an empty reply")

type Service struct {
	cfg     config.Reply
	backend backend
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	httpClient := &http.Client{
		Timeout: cfg.Reply.Timeout,
	}

	switch cfg.Reply.Provider {
	case "openai":
		clientConfig := openai.DefaultConfig(cfg.Reply.Token)
		clientConfig.BaseURL = cfg.Reply.BaseURL
		clientConfig.HTTPClient = httpClient

		return NewWithOpenAI(cfg.Reply, openai.NewClientWithConfig(clientConfig)), nil
	default:
		llm, err := ollama.New(
			ollama.WithModel(cfg.Reply.Model),
			ollama.WithServerURL(cfg.Reply.BaseURL),
			ollama.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, oops.Errorf("failed to create ollama client: %w", err)
		}
		llm.CallbacksHandler = LogCallbackHandler{}

		return NewWithModel(cfg.Reply, llm), nil
	}
}

func NewWithModel(cfg config.Reply, model llms.Model) *Service {
	return &Service{
		cfg:     cfg,
		backend: &modelBackend{model: model},
	}
}

func NewWithOpenAI(cfg config.Reply, client *openai.Client) *Service {
	return &Service{
		cfg:     cfg,
		backend: &openaiBackend{client: client, model: cfg.Model},
	}
}

func (s *Service) Temperature(style conversation.Style) float64 {
	if style == conversation.StyleDetailed {
		return s.cfg.DetailedTemperature
	}

	return s.cfg.ConciseTemperature
}

// Generate sends the whole conversation in one request and returns the
// assistant turn. There is no retry.
func (s *Service) Generate(ctx context.Context, turns []conversation.Turn, style conversation.Style) (conversation.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	startTime := time.Now()

	text, err := s.backend.complete(ctx, turns, s.Temperature(style))
	if err != nil {
		return conversation.Turn{}, fmt.Errorf("reply generation failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return conversation.Turn{}, ErrEmptyReply
	}

	slog.Debug("Generated reply",
		"model", s.cfg.Model,
		"style", style,
		"turns", len(turns),
		"took", time.Since(startTime),
	)

	return conversation.Turn{
		Role:    conversation.RoleAssistant,
		Content: text,
	}, nil
}
