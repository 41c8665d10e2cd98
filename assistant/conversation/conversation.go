// Package conversation drives one user's chat session: it applies the chosen
// preset, reads fast mode and auto-translation from preferences, keeps the
// message history, and drops results that a newer request has superseded.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ownlingo/unibot/assistant"
	"github.com/ownlingo/unibot/assistant/preferences"
	"github.com/ownlingo/unibot/internal/logger"
)

const (
	// AutoTranslateFailed is appended to a reply whose translation failed
	AutoTranslateFailed = " [Auto-translation failed]"

	// NoReply stands in for an empty generated reply
	NoReply = "Sorry, I couldn't generate a reply."

	// ErrorReply is recorded when the chat request itself failed
	ErrorReply = "There was an error contacting the server."
)

// ErrSuperseded is returned for a result that arrived after a newer request began
var ErrSuperseded = errors.New("superseded by a newer request")

type Chatter interface {
	Send(ctx context.Context, req assistant.ChatRequest) (assistant.ChatReply, error)
}

type Translator interface {
	Translate(ctx context.Context, req assistant.TranslationRequest) (assistant.TranslationResponse, error)
}

type Detector interface {
	Detect(ctx context.Context, req assistant.DetectionRequest) (assistant.Detection, error)
}

// Message is one entry of the conversation
type Message struct {
	ID        int
	Content   string
	FromUser  bool
	Timestamp time.Time
	Provider  string
	Degraded  bool
}

// Tracker hands out tickets; only the most recent ticket is current
type Tracker struct {
	seq atomic.Uint64
}

// Ticket identifies one request issued by a Tracker
type Ticket struct {
	tracker *Tracker
	id      uint64
}

// Begin supersedes every earlier ticket
func (t *Tracker) Begin() Ticket {
	return Ticket{tracker: t, id: t.seq.Add(1)}
}

// Current reports whether no newer ticket has been issued
func (tk Ticket) Current() bool {
	return tk.tracker != nil && tk.tracker.seq.Load() == tk.id
}

// Session is a single conversation. It is safe for concurrent use.
type Session struct {
	chat       Chatter
	translator Translator
	detector   Detector
	prefs      preferences.Store

	mu       sync.Mutex
	preset   *Preset
	history  []Message
	nextID   int
	detected *assistant.Detection

	detections Tracker
}

// NewSession creates a session; prefs may be nil for defaults only
func NewSession(chat Chatter, translator Translator, detector Detector, prefs preferences.Store) *Session {
	if prefs == nil {
		prefs = preferences.NewMemoryStore()
	}
	return &Session{
		chat:       chat,
		translator: translator,
		detector:   detector,
		prefs:      prefs,
	}
}

// UsePreset selects the use case whose context accompanies every prompt
func (s *Session) UsePreset(key string) error {
	p, ok := LookupPreset(key)
	if !ok {
		return assistant.Invalid("preset", "Unknown preset "+key)
	}
	s.mu.Lock()
	s.preset = &p
	s.mu.Unlock()
	return nil
}

// ClearPreset removes the use-case context
func (s *Session) ClearPreset() {
	s.mu.Lock()
	s.preset = nil
	s.mu.Unlock()
}

// AskOptions override preferences for one message
type AskOptions struct {
	// TargetLang forces translation of the reply; empty defers to preferences
	TargetLang string
}

// Ask sends prompt and records both the user message and the reply. The
// reply is translated when a target is given or auto-translation is on.
func (s *Session) Ask(ctx context.Context, prompt string, opts AskOptions) (Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return Message{}, assistant.Invalid("prompt", "Invalid prompt")
	}

	s.mu.Lock()
	s.appendLocked(Message{Content: prompt, FromUser: true})
	var presetContext string
	if s.preset != nil {
		presetContext = s.preset.Context
	}
	s.mu.Unlock()

	reply, err := s.chat.Send(ctx, assistant.ChatRequest{
		Prompt:  prompt,
		Context: presetContext,
		Fast:    preferences.Bool(s.prefs, preferences.KeyFastMode, true),
	})
	if err != nil {
		logger.Warnf("conversation: chat failed: %v", err)
		s.mu.Lock()
		msg := s.appendLocked(Message{Content: ErrorReply})
		s.mu.Unlock()
		return msg, err
	}

	text := reply.Reply
	if strings.TrimSpace(text) == "" {
		text = NoReply
	}
	if target := s.targetLanguage(opts); target != "" {
		text = s.translateReply(ctx, text, target)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(Message{
		Content:  text,
		Provider: reply.Provider,
		Degraded: reply.Degraded,
	}), nil
}

func (s *Session) targetLanguage(opts AskOptions) string {
	if opts.TargetLang != "" {
		return opts.TargetLang
	}
	if preferences.Bool(s.prefs, preferences.KeyAutoTranslate, false) {
		return preferences.String(s.prefs, preferences.KeyTargetLang, "")
	}
	return ""
}

func (s *Session) translateReply(ctx context.Context, text, target string) string {
	tr, err := s.translator.Translate(ctx, assistant.TranslationRequest{
		Text:   text,
		Source: assistant.AutoLanguage,
		Target: target,
	})
	if err != nil {
		logger.Warnf("conversation: auto-translation to %s failed: %v", target, err)
		return text + AutoTranslateFailed
	}
	if strings.TrimSpace(tr.Translation) == "" {
		return text
	}
	return tr.Translation
}

// DetectInput detects the language of text being typed. A result that
// arrives after a newer call started is discarded with ErrSuperseded.
func (s *Session) DetectInput(ctx context.Context, text string) (assistant.Detection, error) {
	ticket := s.detections.Begin()

	if strings.TrimSpace(text) == "" {
		s.mu.Lock()
		s.detected = nil
		s.mu.Unlock()
		return assistant.Detection{}, nil
	}

	det, err := s.detector.Detect(ctx, assistant.DetectionRequest{Text: text})
	if !ticket.Current() {
		return assistant.Detection{}, ErrSuperseded
	}
	if err != nil {
		return assistant.Detection{}, err
	}

	s.mu.Lock()
	s.detected = &det
	s.mu.Unlock()
	return det, nil
}

// Detected returns the latest accepted detection, or nil
func (s *Session) Detected() *assistant.Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.detected == nil {
		return nil
	}
	d := *s.detected
	return &d
}

// History returns a copy of the messages so far
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.history...)
}

func (s *Session) appendLocked(m Message) Message {
	s.nextID++
	m.ID = s.nextID
	m.Timestamp = time.Now()
	s.history = append(s.history, m)
	return m
}
