package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ChatSession is one ongoing multi-turn dialogue held by the remote model.
type ChatSession interface {
	SendMessage(ctx context.Context, message string) (string, error)
}

// SessionStarter opens a fresh dialogue context with no prior turns.
type SessionStarter interface {
	StartSession() (ChatSession, error)
}

// ConversationManager owns the single conversation of the process. Every
// read and write of the session handle happens under mu, so concurrent
// Send calls are fully serialized.
type ConversationManager struct {
	mu      sync.Mutex
	starter SessionStarter
	current ChatSession
	timeout time.Duration
}

// NewConversationManager accepts a nil starter; Send then fails with a
// ConfigurationError.
func NewConversationManager(starter SessionStarter, timeout time.Duration) *ConversationManager {
	return &ConversationManager{
		starter: starter,
		timeout: timeout,
	}
}

// session returns the current session, creating one if none exists.
// Callers must hold mu.
func (m *ConversationManager) session() (ChatSession, error) {
	if m.current != nil {
		return m.current, nil
	}
	s, err := m.starter.StartSession()
	if err != nil {
		return nil, err
	}
	m.current = s
	log.Debug("Started new conversation session")
	return s, nil
}

// Send submits message to the conversation and waits for the full reply.
// The remote call is detached from ctx cancellation and bounded only by
// the manager's timeout.
func (m *ConversationManager) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", &ValidationError{Message: "Empty message"}
	}
	if m.starter == nil {
		return "", &ConfigurationError{Message: "API key missing! Set GEMINI_API_KEY in the environment or .env"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.session()
	if err != nil {
		return "", &RemoteServiceError{Err: err}
	}

	callCtx := context.WithoutCancel(ctx)
	if m.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, m.timeout)
		defer cancel()
	}

	reply, err := s.SendMessage(callCtx, message)
	if err != nil {
		return "", &RemoteServiceError{Err: err}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &RemoteServiceError{Err: errors.New("model returned an empty reply")}
	}
	return reply, nil
}

// Reset drops the current session. The next Send starts a fresh context.
func (m *ConversationManager) Reset() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// HasSession reports whether a session currently exists.
func (m *ConversationManager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Configured reports whether Send can reach a model at all.
func (m *ConversationManager) Configured() bool {
	return m.starter != nil
}
