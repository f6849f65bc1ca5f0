package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/conversation"
	"github.com/gridsage/gridsage/internal/port/database"
)

// session pairs a live conversation with its last-activity timestamp.
type session struct {
	conv     *conversation.Conversation
	lastSeen time.Time
}

// SessionManager owns the session-to-conversation mapping. Active
// conversations live in memory; a database store, when configured, makes
// them durable across restarts and sweeps.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*session
	store    database.Store
	ttl      time.Duration
}

// NewSessionManager creates a SessionManager. store may be nil, in which
// case sessions are memory-only and expired ones are gone for good.
func NewSessionManager(store database.Store, ttl time.Duration) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*session),
		store:    store,
		ttl:      ttl,
	}
}

// Resolve returns the conversation for sessionID, creating a new session
// when the id is empty or unknown. A known id that has been swept from
// memory is rehydrated from the store when one is configured.
func (m *SessionManager) Resolve(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	if sessionID == "" {
		return m.create(ctx, uuid.NewString())
	}

	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		m.touch(sessionID)
		return s.conv, nil
	}

	if m.store != nil {
		conv, err := m.store.GetConversationBySession(ctx, sessionID)
		if err == nil {
			m.adopt(conv)
			return conv, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("load session %s: %w", sessionID, err)
		}
	}

	// Unknown id: honor it rather than silently minting a new one, so
	// callers can pre-assign their own session keys.
	return m.create(ctx, sessionID)
}

// Commit records newly appended turns for the session and persists them
// when a store is configured.
func (m *SessionManager) Commit(ctx context.Context, conv *conversation.Conversation, newTurns []conversation.Turn) error {
	m.touch(conv.SessionID)
	if m.store == nil || len(newTurns) == 0 {
		return nil
	}
	if err := m.store.AppendTurns(ctx, conv.ID, newTurns); err != nil {
		return fmt.Errorf("persist turns for session %s: %w", conv.SessionID, err)
	}
	return nil
}

// Turns returns the turn history for a session, or ErrNotFound.
func (m *SessionManager) Turns(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if ok {
		return s.conv.Turns, nil
	}
	if m.store != nil {
		conv, err := m.store.GetConversationBySession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return conv.Turns, nil
	}
	return nil, domain.ErrNotFound
}

// Delete removes a session from memory and, when a store is configured,
// from durable storage.
func (m *SessionManager) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok && m.store != nil {
		if err := m.store.DeleteConversation(ctx, s.conv.ID); err != nil {
			return fmt.Errorf("delete session %s: %w", sessionID, err)
		}
	}
	return nil
}

// Len reports the number of sessions currently held in memory.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartSweep starts a background goroutine that evicts sessions idle for
// longer than the TTL. It stops when ctx is cancelled.
func (m *SessionManager) StartSweep(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.sweep(time.Now()); n > 0 {
					slog.Debug("swept idle sessions", "count", n)
				}
			}
		}
	}()
}

// sweep evicts sessions whose last activity is older than the TTL and
// returns how many were removed. Persisted conversations survive eviction
// and are rehydrated on the next Resolve.
func (m *SessionManager) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen) > m.ttl {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

func (m *SessionManager) create(ctx context.Context, sessionID string) (*conversation.Conversation, error) {
	conv := &conversation.Conversation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if m.store != nil {
		if err := m.store.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("create session %s: %w", sessionID, err)
		}
	}
	m.adopt(conv)
	return conv, nil
}

func (m *SessionManager) adopt(conv *conversation.Conversation) {
	m.mu.Lock()
	m.sessions[conv.SessionID] = &session{conv: conv, lastSeen: time.Now()}
	m.mu.Unlock()
}

func (m *SessionManager) touch(sessionID string) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		s.lastSeen = time.Now()
	}
	m.mu.Unlock()
}
