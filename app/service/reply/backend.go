package reply

import (
	"context"
	"fmt"

	"voxmate/app/service/conversation"

	"github.com/sashabaranov/go-openai"
	"github.com/tmc/langchaingo/llms"
)

type backend interface {
	complete(ctx context.Context, turns []conversation.Turn, temperature float64) (string, error)
}

// modelBackend drives any langchaingo chat model.
type modelBackend struct {
	model llms.Model
}

func (b *modelBackend) complete(ctx context.Context, turns []conversation.Turn, temperature float64) (string, error) {
	messages := make([]llms.MessageContent, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, llms.TextParts(messageType(turn.Role), turn.Content))
	}

	resp, err := b.model.GenerateContent(ctx, messages, llms.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no content choices returned")
	}

	return resp.Choices[0].Content, nil
}

func messageType(role conversation.Role) llms.ChatMessageType {
	switch role {
	case conversation.RoleSystem:
		return llms.ChatMessageTypeSystem
	case conversation.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

// openaiBackend talks to any OpenAI-compatible chat completion endpoint.
type openaiBackend struct {
	client *openai.Client
	model  string
}

func (b *openaiBackend) complete(ctx context.Context, turns []conversation.Turn, temperature float64) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	aiResponse, err := b.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       b.model,
			Messages:    messages,
			Temperature: float32(temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(aiResponse.Choices) == 0 {
		return "", fmt.Errorf("no chat completion found")
	}

	return aiResponse.Choices[0].Message.Content, nil
}
