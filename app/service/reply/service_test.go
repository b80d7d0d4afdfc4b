package reply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"voxmate/app/config"
	"voxmate/app/service/conversation"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	reply    string
	err      error
	messages []llms.MessageContent
	options  llms.CallOptions
	deadline bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.options)
	}
	_, f.deadline = ctx.Deadline()

	if f.err != nil {
		return nil, f.err
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.reply}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func testConfig() config.Reply {
	return config.Reply{
		Provider:            "ollama",
		Model:               "llama3.2",
		Timeout:             time.Minute,
		ConciseTemperature:  0.1,
		DetailedTemperature: 0.8,
	}
}

var testTurns = []conversation.Turn{
	{Role: conversation.RoleSystem, Content: "You are a voice assistant."},
	{Role: conversation.RoleUser, Content: "hi"},
	{Role: conversation.RoleAssistant, Content: "hello"},
	{Role: conversation.RoleSystem, Content: "Please provide a detailed response."},
	{Role: conversation.RoleUser, Content: "elaborate on tides"},
}

func TestGenerate_Model(t *testing.T) {
	model := &fakeModel{reply: "  Tides are caused by the moon.  "}
	svc := NewWithModel(testConfig(), model)

	turn, err := svc.Generate(context.Background(), testTurns, conversation.StyleDetailed)
	require.NoError(t, err)

	assert.Equal(t, conversation.Turn{Role: conversation.RoleAssistant, Content: "Tides are caused by the moon."}, turn)
	assert.InDelta(t, 0.8, model.options.Temperature, 1e-9)
	assert.True(t, model.deadline)

	require.Len(t, model.messages, 5)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[3].Role)
	assert.Equal(t, llms.TextContent{Text: "elaborate on tides"}, model.messages[4].Parts[0])
}

func TestGenerate_ConciseTemperature(t *testing.T) {
	model := &fakeModel{reply: "ok"}
	svc := NewWithModel(testConfig(), model)

	_, err := svc.Generate(context.Background(), testTurns[:2], conversation.StyleConcise)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, model.options.Temperature, 1e-9)
}

func TestGenerate_Failures(t *testing.T) {
	refused := errors.New("connection refused")

	_, err := NewWithModel(testConfig(), &fakeModel{err: refused}).Generate(context.Background(), testTurns, conversation.StyleConcise)
	assert.ErrorIs(t, err, refused)

	_, err = NewWithModel(testConfig(), &fakeModel{reply: " \n "}).Generate(context.Background(), testTurns, conversation.StyleConcise)
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestGenerate_OpenAI(t *testing.T) {
	var request openai.ChatCompletionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Sure."},"finish_reason":"stop"}]}`)
	}))
	t.Cleanup(server.Close)

	cfg := testConfig()
	cfg.Provider = "openai"
	cfg.Model = "gpt-4o-mini"

	clientConfig := openai.DefaultConfig("secret")
	clientConfig.BaseURL = server.URL + "/v1"

	svc := NewWithOpenAI(cfg, openai.NewClientWithConfig(clientConfig))

	turn, err := svc.Generate(context.Background(), testTurns, conversation.StyleDetailed)
	require.NoError(t, err)
	assert.Equal(t, "Sure.", turn.Content)

	assert.Equal(t, "gpt-4o-mini", request.Model)
	assert.InDelta(t, 0.8, request.Temperature, 1e-6)
	require.Len(t, request.Messages, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, request.Messages[3].Role)
	assert.Equal(t, "elaborate on tides", request.Messages[4].Content)
}

func TestGenerate_OpenAIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, `{"error":{"message":"rate limited","type":"requests"}}`)
	}))
	t.Cleanup(server.Close)

	clientConfig := openai.DefaultConfig("secret")
	clientConfig.BaseURL = server.URL + "/v1"

	_, err := NewWithOpenAI(testConfig(), openai.NewClientWithConfig(clientConfig)).
		Generate(context.Background(), testTurns, conversation.StyleConcise)
	assert.Error(t, err)
}
