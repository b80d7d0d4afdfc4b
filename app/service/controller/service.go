package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"voxmate/app/config"
	"voxmate/app/service/conversation"
	"voxmate/app/service/speech"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

type Speech interface {
	Calibrate(ctx context.Context) error
	CaptureUtterance(ctx context.Context) (string, error)
}

type Reply interface {
	Generate(ctx context.Context, turns []conversation.Turn, style conversation.Style) (conversation.Turn, error)
}

type Voice interface {
	Speak(ctx context.Context, text string) error
}

// TraceFunc receives state machine events: utterance, transition, style, cycle.
type TraceFunc func(event string, attrs ...any)

type Service struct {
	cfg        config.Assistant
	debug      bool
	retryDelay time.Duration

	speech Speech
	reply  Reply
	voice  Voice
	conv   *conversation.Context

	state          State
	lastActivity   time.Time
	lastProcessing time.Duration

	now   func() time.Time
	trace TraceFunc
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewWith(
		cfg,
		do.MustInvoke[Speech](di),
		do.MustInvoke[Reply](di),
		do.MustInvoke[Voice](di),
	), nil
}

func NewWith(cfg *config.Config, speech Speech, reply Reply, voice Voice) *Service {
	return &Service{
		cfg:        cfg.Assistant,
		debug:      cfg.Debug,
		retryDelay: cfg.Speech.RetryDelay,
		speech:     speech,
		reply:      reply,
		voice:      voice,
		conv:       conversation.NewContext(cfg.Assistant.SystemPrompt),
		state:      StateIdle,
		now:        time.Now,
	}
}

func (s *Service) SetTrace(trace TraceFunc) {
	s.trace = trace
}

func (s *Service) State() State {
	return s.state
}

func (s *Service) Conversation() *conversation.Context {
	return s.conv
}

// Run calibrates the microphone, greets the user and drives the state machine
// one step at a time. It returns nil once the termination phrase is heard and
// the context error when ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.speech.Calibrate(ctx); err != nil {
		return fmt.Errorf("failed to calibrate microphone: %w", err)
	}

	greeting := s.cfg.Phrases.Greeting
	if s.debug {
		greeting = s.cfg.Phrases.DebugGreeting
	}

	s.say(ctx, greeting)
	s.lastActivity = s.now()

	slog.Info("Voice assistant running", "state", s.state)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var terminated bool

		if s.state == StateChatMode {
			terminated = s.chatStep(ctx)
		} else {
			terminated = s.listenStep(ctx)
		}

		if terminated {
			slog.Info("Termination phrase heard, shutting down")
			return nil
		}
	}
}

// listenStep waits for one trigger while idle or sleeping.
func (s *Service) listenStep(ctx context.Context) bool {
	if text, ok := s.capture(ctx); ok {
		if matched, terminated := s.react(ctx, text); matched {
			return terminated
		}
	}

	if s.state == StateIdle && s.now().Sub(s.lastActivity) > s.cfg.IdleTimeout {
		s.say(ctx, s.cfg.Phrases.Sleep)
		s.transition(StateSleeping, triggerNone)
	}

	return false
}

// react applies the trigger found in text, if any, and reports whether the
// assistant has to shut down.
func (s *Service) react(ctx context.Context, text string) (matched, terminated bool) {
	switch s.match(text) {
	case triggerWake:
		s.say(ctx, s.cfg.Phrases.WakeAck)
		s.lastActivity = s.now()
		s.transition(StateChatMode, triggerWake)
	case triggerAwake:
		s.say(ctx, s.cfg.Phrases.AwakeAck)
		s.lastActivity = s.now()
		s.transition(StateChatMode, triggerAwake)
	case triggerTerminate:
		s.say(ctx, s.cfg.Phrases.Farewell)
		return true, true
	default:
		return false, false
	}

	return true, false
}

// chatStep runs one query, reply and speak cycle. Chat mode ends once the user
// has been quiet for longer than the chat timeout plus the time the last cycle
// spent processing, checked both before and after listening.
func (s *Service) chatStep(ctx context.Context) bool {
	if s.chatExpired() {
		s.leaveChat(ctx)
		return false
	}

	text, err := s.speech.CaptureUtterance(ctx)
	if ctx.Err() != nil {
		return false
	}
	if err == nil {
		s.emit("utterance", "text", text, "state", s.state)
	}

	if s.chatExpired() {
		s.leaveChat(ctx)

		// a late utterance is no query, but still counts as an idle trigger
		if err == nil {
			_, terminated := s.react(ctx, text)
			return terminated
		}

		return false
	}

	if errors.Is(err, speech.ErrNoMatch) {
		s.say(ctx, s.cfg.Phrases.NotUnderstood)
		return false
	}
	if err != nil {
		s.captureFailed(ctx, err)
		return false
	}

	if contains(text, s.cfg.TerminationPhrase) {
		s.say(ctx, s.cfg.Phrases.Farewell)
		return true
	}

	startTime := s.now()
	s.conv.AddUser(text)

	style := conversation.StyleConcise
	if contains(text, s.cfg.DetailKeyword) {
		style = conversation.StyleDetailed
	}

	if s.conv.SetStyle(style) {
		s.emit("style", "style", style)
	}

	turn, err := s.reply.Generate(ctx, s.conv.Turns(), style)
	if err != nil {
		slog.Error("Failed to generate reply", "error", err)
		s.say(ctx, s.cfg.Phrases.ReplyFailed)
	} else {
		s.conv.AddAssistant(turn.Content)
		s.say(ctx, turn.Content)
	}

	s.lastProcessing = s.now().Sub(startTime)
	s.lastActivity = startTime

	s.emit("cycle",
		"style", style,
		"processing", s.lastProcessing,
		"turns", s.conv.Len(),
		"failed", err != nil,
	)

	return false
}

func (s *Service) chatExpired() bool {
	return s.now().Sub(s.lastActivity) > s.cfg.ChatTimeout+s.lastProcessing
}

func (s *Service) leaveChat(ctx context.Context) {
	s.say(ctx, s.cfg.Phrases.ChatExit)
	s.transition(StateIdle, triggerNone)
	s.lastActivity = s.now()

	if !s.cfg.KeepsHistory() {
		s.conv.Reset()
	}
}

// capture returns a recognized utterance, or false when the attempt produced
// nothing. Failures never leave this method.
func (s *Service) capture(ctx context.Context) (string, bool) {
	text, err := s.speech.CaptureUtterance(ctx)
	if errors.Is(err, speech.ErrNoMatch) {
		return "", false
	}
	if err != nil {
		s.captureFailed(ctx, err)
		return "", false
	}

	s.emit("utterance", "text", text, "state", s.state)

	return text, true
}

func (s *Service) captureFailed(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}

	slog.Warn("Speech capture failed", "error", err)

	if s.retryDelay <= 0 {
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(s.retryDelay):
	}
}

type rule struct {
	trigger trigger
	phrase  string
	allowed bool
}

// match checks the triggers in priority order; the first one that applies wins.
func (s *Service) match(text string) trigger {
	rules := []rule{
		{triggerWake, s.cfg.WakeWord, s.state == StateIdle},
		{triggerAwake, s.cfg.WakeUpPhrase, s.state == StateSleeping},
		{triggerTerminate, s.cfg.TerminationPhrase, true},
	}

	index := pie.FindFirstUsing(rules, func(r rule) bool {
		return r.allowed && contains(text, r.phrase)
	})
	if index < 0 {
		return triggerNone
	}

	return rules[index].trigger
}

func (s *Service) transition(to State, cause trigger) {
	from := s.state
	s.state = to

	slog.Info("State changed", "from", from, "to", to, "trigger", cause)
	s.emit("transition", "from", from, "to", to, "trigger", cause)
}

// say speaks text. A failed synthesis or playback counts as nothing said.
func (s *Service) say(ctx context.Context, text string) {
	if err := s.voice.Speak(ctx, text); err != nil && ctx.Err() == nil {
		slog.Warn("Failed to speak", "text", text, "error", err)
	}
}

func (s *Service) emit(event string, attrs ...any) {
	if s.trace != nil {
		s.trace(event, attrs...)
	}
}

func contains(text, phrase string) bool {
	return phrase != "" && strings.Contains(strings.ToLower(text), strings.ToLower(phrase))
}
