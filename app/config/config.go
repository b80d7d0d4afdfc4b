package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	defaultPath = "config.yaml"
	pathEnv     = "VOXMATE_CONFIG"
)

type Config struct {
	// Debug mode: debug greeting, trace events, debug log level
	Debug     bool      `yaml:"debug" example:"false"`
	Log       Log       `yaml:"log"`
	Assistant Assistant `yaml:"assistant"`
	Audio     Audio     `yaml:"audio"`
	Speech    Speech    `yaml:"speech"`
	Reply     Reply     `yaml:"reply"`
	Voice     Voice     `yaml:"voice"`
}

type Assistant struct {
	// Wake word, moves the assistant from idle to chat mode
	WakeWord string `yaml:"wake_word" example:"assistant" validate:"required"`
	// Wake-up phrase, moves the assistant from sleep to chat mode
	WakeUpPhrase string `yaml:"wake_up_phrase" example:"hey assistant are you awake" validate:"required"`
	// Termination phrase, shuts the assistant down
	TerminationPhrase string `yaml:"termination_phrase" example:"bye-bye" validate:"required"`
	// Keyword requesting a detailed answer
	DetailKeyword string `yaml:"detail_keyword" example:"elaborate" validate:"required"`
	// Inactivity before going to sleep while idle
	IdleTimeout time.Duration `yaml:"idle_timeout" example:"60s" validate:"gt=0"`
	// Inactivity before leaving chat mode
	ChatTimeout time.Duration `yaml:"chat_timeout" example:"60s" validate:"gt=0"`
	// Keep conversation history when chat mode ends
	KeepHistory *bool `yaml:"keep_history" example:"true"`
	// First system turn of every conversation, empty to omit
	SystemPrompt string  `yaml:"system_prompt"`
	Phrases      Phrases `yaml:"phrases"`
}

type Phrases struct {
	Greeting      string `yaml:"greeting" validate:"required"`
	DebugGreeting string `yaml:"debug_greeting" validate:"required"`
	WakeAck       string `yaml:"wake_ack" validate:"required"`
	AwakeAck      string `yaml:"awake_ack" validate:"required"`
	Sleep         string `yaml:"sleep" validate:"required"`
	ChatExit      string `yaml:"chat_exit" validate:"required"`
	Farewell      string `yaml:"farewell" validate:"required"`
	NotUnderstood string `yaml:"not_understood" validate:"required"`
	ReplyFailed   string `yaml:"reply_failed" validate:"required"`
}

type Audio struct {
	// ffmpeg input format of the microphone
	InputFormat string `yaml:"input_format" example:"pulse" validate:"required"`
	// ffmpeg input device of the microphone
	InputDevice string `yaml:"input_device" example:"default" validate:"required"`
	// Capture sample rate
	SampleRate int `yaml:"sample_rate" example:"16000" validate:"gt=0"`
	// Ambient noise measurement window
	Calibration time.Duration `yaml:"calibration" example:"1s" validate:"gt=0"`
	// Silence that ends an utterance
	Pause time.Duration `yaml:"pause" example:"800ms" validate:"gt=0"`
	// Audio kept from before speech onset
	PreRoll time.Duration `yaml:"pre_roll" example:"500ms" validate:"gte=0"`
	// Longest utterance
	MaxPhrase time.Duration `yaml:"max_phrase" example:"30s" validate:"gt=0"`
	// Minimum speech energy threshold
	EnergyFloor float64 `yaml:"energy_floor" example:"300" validate:"gte=0"`
	// Speech threshold as a multiple of ambient energy
	EnergyRatio float64 `yaml:"energy_ratio" example:"1.5" validate:"gte=1"`
	// Directory for WAV dumps of captured utterances, empty to disable
	DumpDir string `yaml:"dump_dir" example:"captures"`
}

type Speech struct {
	// Recognizer backend
	Provider string `yaml:"provider" example:"speechkit" validate:"oneof=speechkit whisper"`
	// Delay after a failed capture
	RetryDelay time.Duration `yaml:"retry_delay" example:"1s" validate:"gte=0"`
	SpeechKit  SpeechKit     `yaml:"speech_kit"`
	Whisper    Whisper       `yaml:"whisper"`
}

type SpeechKit struct {
	// Service account key file
	KeyFile string `yaml:"key_file" example:"service-account-key.json"`
	// Recognition language
	Language string `yaml:"language" example:"en-US"`
}

type Whisper struct {
	// ggml model file
	ModelPath string `yaml:"model_path" example:"models/ggml-base.en.bin"`
	// Recognition language
	Language string `yaml:"language" example:"en"`
}

type Reply struct {
	// LLM provider
	Provider string `yaml:"provider" example:"ollama" validate:"oneof=ollama openai"`
	// Server base url
	BaseURL string `yaml:"base_url" example:"http://127.0.0.1:11434" validate:"required"`
	// API token, openai provider only
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX"`
	// Model name
	Model string `yaml:"model" example:"llama3.2" validate:"required"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" example:"60s" validate:"gt=0"`
	// Temperature of concise answers
	ConciseTemperature float64 `yaml:"concise_temperature" example:"0.1" validate:"gte=0"`
	// Temperature of detailed answers
	DetailedTemperature float64 `yaml:"detailed_temperature" example:"0.8" validate:"gte=0"`
}

type Voice struct {
	// F5-TTS gradio server
	BaseURL string `yaml:"base_url" example:"http://127.0.0.1:7860" validate:"required,url"`
	// Gradio API prefix
	APIPrefix string `yaml:"api_prefix" example:"/gradio_api"`
	// Gradio endpoint name
	APIName string `yaml:"api_name" example:"basic_tts" validate:"required"`
	// Reference voice audio
	RefAudio string `yaml:"ref_audio" example:"samples/reference.mp3" validate:"required"`
	// Transcript of the reference voice audio
	RefText string `yaml:"ref_text" validate:"required"`
	// Remove silences from the generated audio
	RemoveSilence bool `yaml:"remove_silence" example:"false"`
	// Cross-fade between generated batches, seconds
	CrossFade float64 `yaml:"cross_fade" example:"0.15" validate:"gte=0"`
	// Speech speed
	Speed float64 `yaml:"speed" example:"1.2" validate:"gt=0"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" example:"2m" validate:"gt=0"`
	// Frames per playback write
	ChunkFrames int `yaml:"chunk_frames" example:"1024" validate:"gt=0"`
}

type Log struct {
	// Directory of the daily log files
	Dir string `yaml:"dir" example:"logs" validate:"required"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

// KeepsHistory reports whether conversation history survives the end of chat mode.
func (a Assistant) KeepsHistory() bool {
	return a.KeepHistory == nil || *a.KeepHistory
}

func Load() (*Config, error) {
	path := os.Getenv(pathEnv)
	if path == "" {
		path = defaultPath
	}

	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config
	presetDefaults(&result)

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	if err := checkProviders(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

// presetDefaults fills the fields for which zero is a valid setting. They are
// set before decoding so that only a missing key keeps the default.
func presetDefaults(cfg *Config) {
	cfg.Audio.PreRoll = 500 * time.Millisecond
	cfg.Speech.RetryDelay = time.Second
	cfg.Reply.ConciseTemperature = 0.1
	cfg.Reply.DetailedTemperature = 0.8
	cfg.Voice.CrossFade = 0.15
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = "logs"
	}

	a := &cfg.Assistant
	if a.WakeWord == "" {
		a.WakeWord = "assistant"
	}
	if a.WakeUpPhrase == "" {
		a.WakeUpPhrase = "hey assistant are you awake"
	}
	if a.TerminationPhrase == "" {
		a.TerminationPhrase = "bye-bye"
	}
	if a.DetailKeyword == "" {
		a.DetailKeyword = "elaborate"
	}
	if a.IdleTimeout == 0 {
		a.IdleTimeout = 60 * time.Second
	}
	if a.ChatTimeout == 0 {
		a.ChatTimeout = 60 * time.Second
	}

	p := &a.Phrases
	setDefault(&p.Greeting, "Hello, Voice assistant running.")
	setDefault(&p.DebugGreeting, "Hello, Voice assistant running on debug mode.")
	setDefault(&p.WakeAck, "How can I assist you?")
	setDefault(&p.AwakeAck, "I'm awake now. How can I assist you?")
	setDefault(&p.Sleep, "Entering sleep mode due to inactivity.")
	setDefault(&p.ChatExit, "Exiting chat mode. Say my name if you need me.")
	setDefault(&p.Farewell, "Goodbye, have a nice day... Shutting down now.")
	setDefault(&p.NotUnderstood, "Sorry, I did not understand that.")
	setDefault(&p.ReplyFailed, "Sorry, I could not generate a response.")

	au := &cfg.Audio
	setDefault(&au.InputFormat, "pulse")
	setDefault(&au.InputDevice, "default")
	if au.SampleRate == 0 {
		au.SampleRate = 16000
	}
	if au.Calibration == 0 {
		au.Calibration = time.Second
	}
	if au.Pause == 0 {
		au.Pause = 800 * time.Millisecond
	}
	if au.MaxPhrase == 0 {
		au.MaxPhrase = 30 * time.Second
	}
	if au.EnergyFloor == 0 {
		au.EnergyFloor = 300
	}
	if au.EnergyRatio == 0 {
		au.EnergyRatio = 1.5
	}

	s := &cfg.Speech
	setDefault(&s.Provider, "speechkit")
	setDefault(&s.SpeechKit.KeyFile, "service-account-key.json")
	setDefault(&s.SpeechKit.Language, "en-US")
	setDefault(&s.Whisper.Language, "en")

	r := &cfg.Reply
	setDefault(&r.Provider, "ollama")
	if r.BaseURL == "" && r.Provider == "ollama" {
		r.BaseURL = "http://127.0.0.1:11434"
	}
	setDefault(&r.Model, "llama3.2")
	if r.Timeout == 0 {
		r.Timeout = 60 * time.Second
	}

	v := &cfg.Voice
	setDefault(&v.BaseURL, "http://127.0.0.1:7860")
	setDefault(&v.APIPrefix, "/gradio_api")
	setDefault(&v.APIName, "basic_tts")
	if v.Speed == 0 {
		v.Speed = 1.2
	}
	if v.Timeout == 0 {
		v.Timeout = 2 * time.Minute
	}
	if v.ChunkFrames == 0 {
		v.ChunkFrames = 1024
	}
}

func checkProviders(cfg *Config) error {
	if cfg.Speech.Provider == "whisper" && cfg.Speech.Whisper.ModelPath == "" {
		return oops.Errorf("speech.whisper.model_path is required for the whisper provider")
	}

	if cfg.Reply.Provider == "openai" && cfg.Reply.Token == "" {
		return oops.Errorf("reply.token is required for the openai provider")
	}

	return nil
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
