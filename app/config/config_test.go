package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
voice:
  ref_audio: samples/reference.mp3
  ref_text: "The way you self-analyze, I've always admired it."
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.False(t, cfg.Debug)
	assert.Equal(t, "logs", cfg.Log.Dir)
	assert.Equal(t, "assistant", cfg.Assistant.WakeWord)
	assert.Equal(t, "hey assistant are you awake", cfg.Assistant.WakeUpPhrase)
	assert.Equal(t, "bye-bye", cfg.Assistant.TerminationPhrase)
	assert.Equal(t, "elaborate", cfg.Assistant.DetailKeyword)
	assert.Equal(t, 60*time.Second, cfg.Assistant.IdleTimeout)
	assert.Equal(t, 60*time.Second, cfg.Assistant.ChatTimeout)
	assert.True(t, cfg.Assistant.KeepsHistory())
	assert.Equal(t, "Sorry, I did not understand that.", cfg.Assistant.Phrases.NotUnderstood)

	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 800*time.Millisecond, cfg.Audio.Pause)

	assert.Equal(t, "speechkit", cfg.Speech.Provider)
	assert.Equal(t, "ollama", cfg.Reply.Provider)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Reply.BaseURL)
	assert.Equal(t, "llama3.2", cfg.Reply.Model)
	assert.InDelta(t, 0.1, cfg.Reply.ConciseTemperature, 1e-9)
	assert.InDelta(t, 0.8, cfg.Reply.DetailedTemperature, 1e-9)

	assert.Equal(t, "basic_tts", cfg.Voice.APIName)
	assert.InDelta(t, 1.2, cfg.Voice.Speed, 1e-9)
	assert.Equal(t, 1024, cfg.Voice.ChunkFrames)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig + `
debug: true
assistant:
  wake_word: Jarvis
  idle_timeout: 5m
  chat_timeout: 20s
  keep_history: false
reply:
  provider: openai
  base_url: https://openrouter.ai/api/v1
  token: secret
  model: deepseek/deepseek-chat
`))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "Jarvis", cfg.Assistant.WakeWord)
	assert.Equal(t, 5*time.Minute, cfg.Assistant.IdleTimeout)
	assert.Equal(t, 20*time.Second, cfg.Assistant.ChatTimeout)
	assert.False(t, cfg.Assistant.KeepsHistory())
	assert.Equal(t, "openai", cfg.Reply.Provider)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Reply.BaseURL)
}

func TestParse_ZeroValuesKept(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig + `
  cross_fade: 0
audio:
  pre_roll: 0s
speech:
  retry_delay: 0s
reply:
  concise_temperature: 0
  detailed_temperature: 0
`))
	require.NoError(t, err)

	assert.Zero(t, cfg.Audio.PreRoll)
	assert.Zero(t, cfg.Speech.RetryDelay)
	assert.Zero(t, cfg.Reply.ConciseTemperature)
	assert.Zero(t, cfg.Reply.DetailedTemperature)
	assert.Zero(t, cfg.Voice.CrossFade)
}

func TestParse_ZeroDefaultsWhenMissing(t *testing.T) {
	cfg, err := Parse([]byte(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Audio.PreRoll)
	assert.Equal(t, time.Second, cfg.Speech.RetryDelay)
	assert.InDelta(t, 0.15, cfg.Voice.CrossFade, 1e-9)
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing voice reference", "debug: true\n"},
		{"unknown speech provider", minimalConfig + "speech:\n  provider: google\n"},
		{"whisper without model", minimalConfig + "speech:\n  provider: whisper\n"},
		{"openai without token", minimalConfig + "reply:\n  provider: openai\n  base_url: https://api.openai.com/v1\n"},
		{"openai without base url", minimalConfig + "reply:\n  provider: openai\n  token: secret\n"},
		{"broken yaml", "voice: [\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_UsesEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0o644))

	t.Setenv(pathEnv, path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "samples/reference.mp3", cfg.Voice.RefAudio)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
