package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/conversation"
)

// memStore is a map-backed database.Store for tests.
type memStore struct {
	bySession map[string]*conversation.Conversation
	appended  int
}

func newMemStore() *memStore {
	return &memStore{bySession: make(map[string]*conversation.Conversation)}
}

func (s *memStore) CreateConversation(_ context.Context, c *conversation.Conversation) error {
	s.bySession[c.SessionID] = c
	return nil
}

func (s *memStore) GetConversationBySession(_ context.Context, sessionID string) (*conversation.Conversation, error) {
	c, ok := s.bySession[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *memStore) AppendTurns(_ context.Context, conversationID string, turns []conversation.Turn) error {
	s.appended += len(turns)
	return nil
}

func (s *memStore) ListTurns(_ context.Context, conversationID string) ([]conversation.Turn, error) {
	for _, c := range s.bySession {
		if c.ID == conversationID {
			return c.Turns, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) DeleteConversation(_ context.Context, id string) error {
	for sid, c := range s.bySession {
		if c.ID == id {
			delete(s.bySession, sid)
			return nil
		}
	}
	return domain.ErrNotFound
}

func TestResolveGeneratesSessionID(t *testing.T) {
	m := NewSessionManager(nil, time.Minute)

	conv, err := m.Resolve(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.SessionID == "" || conv.ID == "" {
		t.Errorf("expected generated ids, got %+v", conv)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", m.Len())
	}
}

func TestResolveReturnsSameConversation(t *testing.T) {
	m := NewSessionManager(nil, time.Minute)

	first, err := m.Resolve(context.Background(), "sess-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Append(conversation.UserTurn("hello"))

	second, err := m.Resolve(context.Background(), "sess-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Error("expected the same conversation instance")
	}
	if len(second.Turns) != 1 {
		t.Errorf("expected history to survive, got %d turns", len(second.Turns))
	}
}

func TestResolveRehydratesFromStore(t *testing.T) {
	store := newMemStore()
	stored := &conversation.Conversation{ID: "conv-1", SessionID: "sess-b"}
	stored.Append(conversation.UserTurn("earlier question"))
	store.bySession["sess-b"] = stored

	m := NewSessionManager(store, time.Minute)
	conv, err := m.Resolve(context.Background(), "sess-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.ID != "conv-1" || len(conv.Turns) != 1 {
		t.Errorf("expected stored conversation, got %+v", conv)
	}
}

func TestCommitPersistsTurns(t *testing.T) {
	store := newMemStore()
	m := NewSessionManager(store, time.Minute)

	conv, err := m.Resolve(context.Background(), "sess-c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	turns := []conversation.Turn{
		conversation.UserTurn("q"),
		conversation.AssistantTurn("a"),
	}
	if err := m.Commit(context.Background(), conv, turns); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if store.appended != 2 {
		t.Errorf("expected 2 persisted turns, got %d", store.appended)
	}
}

func TestTurnsUnknownSession(t *testing.T) {
	m := NewSessionManager(nil, time.Minute)
	_, err := m.Turns(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	m := NewSessionManager(nil, time.Minute)

	if _, err := m.Resolve(context.Background(), "idle"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Resolve(context.Background(), "fresh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.mu.Lock()
	m.sessions["idle"].lastSeen = time.Now().Add(-2 * time.Minute)
	m.mu.Unlock()

	if n := m.sweep(time.Now()); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 surviving session, got %d", m.Len())
	}
	if _, err := m.Turns(context.Background(), "fresh"); err != nil {
		t.Errorf("fresh session must survive the sweep: %v", err)
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	store := newMemStore()
	m := NewSessionManager(store, time.Minute)

	if _, err := m.Resolve(context.Background(), "sess-d"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Delete(context.Background(), "sess-d"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expected no live sessions, got %d", m.Len())
	}
	if _, ok := store.bySession["sess-d"]; ok {
		t.Error("expected stored conversation to be deleted")
	}
}
