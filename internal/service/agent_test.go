package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/conversation"
	"github.com/gridsage/gridsage/internal/port/reasoner"
	"github.com/gridsage/gridsage/internal/port/toolcall"
	"github.com/gridsage/gridsage/internal/resilience"
)

// scriptedReasoner returns canned outcomes in order, repeating the last one
// when the script runs out.
type scriptedReasoner struct {
	outcomes []reasoner.Outcome
	err      error
	calls    int
	seenLens []int
}

func (r *scriptedReasoner) Reason(_ context.Context, turns []conversation.Turn, _ []toolcall.Spec) (reasoner.Outcome, error) {
	r.calls++
	r.seenLens = append(r.seenLens, len(turns))
	if r.err != nil {
		return reasoner.Outcome{}, r.err
	}
	i := r.calls - 1
	if i >= len(r.outcomes) {
		i = len(r.outcomes) - 1
	}
	return r.outcomes[i], nil
}

func testAgentConfig() config.Agent {
	return config.Agent{
		MaxRoundTrips: 3,
		MaxRetries:    0,
		RetryBackoff:  time.Millisecond,
	}
}

func newTestAgent(r reasoner.Reasoner, loader SnapshotLoader, cfg config.Agent) *AgentService {
	return NewAgentService(
		r,
		NewToolRegistry(loader),
		loader,
		NewSessionManager(nil, time.Minute),
		resilience.NewBreaker(10, time.Second),
		cfg,
	)
}

func TestProcessQueryFinalAnswer(t *testing.T) {
	r := &scriptedReasoner{outcomes: []reasoner.Outcome{
		{FinalText: "You used 2 kWh."},
	}}
	svc := newTestAgent(r, &staticLoader{snap: exampleSnapshot()}, testAgentConfig())

	res, err := svc.ProcessQuery(context.Background(), "how much energy did I use?", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "done" || res.Answer != "You used 2 kWh." {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.SessionID == "" {
		t.Error("expected a generated session id")
	}
	if res.RoundTrips != 1 || res.ToolCalls != 0 {
		t.Errorf("expected 1 round trip and 0 tool calls, got %+v", res)
	}
}

func TestProcessQueryToolRoundTrip(t *testing.T) {
	r := &scriptedReasoner{outcomes: []reasoner.Outcome{
		{ToolRequests: []conversation.ToolRequest{{
			CallID: "call-1",
			Name:   ToolUsageAndCostInRange,
			Arguments: map[string]any{
				"start_date": "2024-01-01",
				"end_date":   "2024-01-10",
			},
		}}},
		{FinalText: "2 kWh for $0.40."},
	}}
	svc := newTestAgent(r, &staticLoader{snap: exampleSnapshot()}, testAgentConfig())

	res, err := svc.ProcessQuery(context.Background(), "usage in early january?", "sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "done" || res.RoundTrips != 2 || res.ToolCalls != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	turns, err := svc.sessions.Turns(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("turns: %v", err)
	}
	// user, assistant tool-call, tool, assistant final
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[2].Role != conversation.RoleTool || turns[2].ToolCallID != "call-1" {
		t.Errorf("tool turn must preserve the call id: %+v", turns[2])
	}
	if turns[2].IsError {
		t.Errorf("unexpected tool error: %s", turns[2].Content)
	}
}

func TestProcessQueryLoopBound(t *testing.T) {
	r := &scriptedReasoner{outcomes: []reasoner.Outcome{
		{ToolRequests: []conversation.ToolRequest{{
			CallID: "call-x",
			Name:   ToolBillingSummary,
		}}},
	}}
	cfg := testAgentConfig()
	svc := newTestAgent(r, &staticLoader{snap: exampleSnapshot()}, cfg)

	res, err := svc.ProcessQuery(context.Background(), "loop forever", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "failed" || res.Answer != MsgTryAgain {
		t.Errorf("unexpected result: %+v", res)
	}
	if r.calls != cfg.MaxRoundTrips {
		t.Errorf("expected exactly %d reasoning calls, got %d", cfg.MaxRoundTrips, r.calls)
	}
	if res.RoundTrips != cfg.MaxRoundTrips {
		t.Errorf("expected %d round trips, got %d", cfg.MaxRoundTrips, res.RoundTrips)
	}
}

func TestProcessQueryReasoningUnavailable(t *testing.T) {
	r := &scriptedReasoner{err: domain.ErrReasoningUnavailable}
	cfg := testAgentConfig()
	cfg.MaxRetries = 2
	svc := newTestAgent(r, &staticLoader{snap: exampleSnapshot()}, cfg)

	res, err := svc.ProcessQuery(context.Background(), "anything", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "failed" || res.Answer != MsgTryAgain {
		t.Errorf("unexpected result: %+v", res)
	}
	if r.calls != 3 {
		t.Errorf("expected initial attempt plus 2 retries, got %d calls", r.calls)
	}
}

func TestProcessQueryDataUnavailable(t *testing.T) {
	r := &scriptedReasoner{outcomes: []reasoner.Outcome{{FinalText: "never"}}}
	loader := &staticLoader{err: domain.ErrStorageNotFound}
	svc := newTestAgent(r, loader, testAgentConfig())

	res, err := svc.ProcessQuery(context.Background(), "anything", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "failed" || res.Answer != MsgDataUnavailable {
		t.Errorf("unexpected result: %+v", res)
	}
	if r.calls != 0 {
		t.Errorf("reasoner must not be called when storage is down, got %d calls", r.calls)
	}
}

func TestProcessQueryToolErrorKeepsConversationAlive(t *testing.T) {
	r := &scriptedReasoner{outcomes: []reasoner.Outcome{
		{ToolRequests: []conversation.ToolRequest{{
			CallID: "call-bad",
			Name:   ToolBillTotalInRange,
			Arguments: map[string]any{
				"start_date": "not-a-date",
				"end_date":   "2024-01-31",
			},
		}}},
		{FinalText: "Sorry, I need valid dates."},
	}}
	svc := newTestAgent(r, &staticLoader{snap: exampleSnapshot()}, testAgentConfig())

	res, err := svc.ProcessQuery(context.Background(), "bill since not-a-date", "sess-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "done" {
		t.Fatalf("a contained tool error must not end the session: %+v", res)
	}

	turns, _ := svc.sessions.Turns(context.Background(), "sess-2")
	var toolTurn *conversation.Turn
	for i := range turns {
		if turns[i].Role == conversation.RoleTool {
			toolTurn = &turns[i]
		}
	}
	if toolTurn == nil || !toolTurn.IsError {
		t.Fatalf("expected an error tool turn in history: %+v", turns)
	}
}

func TestProcessQueryCancellationKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// A registry whose first tool call cancels the context, so the second
	// request in the same batch must never be dispatched.
	reg := toolcall.NewRegistry(toolcall.Spec{
		Name:        "probe",
		Description: "test probe",
		Handler: func(context.Context, map[string]any) (string, error) {
			cancel()
			return "ok", nil
		},
	})

	r := &scriptedReasoner{outcomes: []reasoner.Outcome{
		{ToolRequests: []conversation.ToolRequest{
			{CallID: "c1", Name: "probe"},
			{CallID: "c2", Name: "probe"},
		}},
	}}
	svc := NewAgentService(
		r,
		reg,
		&staticLoader{snap: exampleSnapshot()},
		NewSessionManager(nil, time.Minute),
		resilience.NewBreaker(10, time.Second),
		testAgentConfig(),
	)

	res, err := svc.ProcessQuery(ctx, "cancel mid-dispatch", "sess-3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "failed" || res.ToolCalls != 1 {
		t.Errorf("expected failure with one completed tool call, got %+v", res)
	}

	turns, _ := svc.sessions.Turns(context.Background(), "sess-3")
	var toolTurns int
	for _, turn := range turns {
		if turn.Role == conversation.RoleTool {
			toolTurns++
			if turn.ToolCallID != "c1" {
				t.Errorf("completed result must be kept in order: %+v", turn)
			}
		}
	}
	if toolTurns != 1 {
		t.Errorf("expected exactly the completed tool result, got %d tool turns", toolTurns)
	}
}

func TestProcessQuerySessionContinuity(t *testing.T) {
	r := &scriptedReasoner{outcomes: []reasoner.Outcome{{FinalText: "answer"}}}
	svc := newTestAgent(r, &staticLoader{snap: exampleSnapshot()}, testAgentConfig())

	first, err := svc.ProcessQuery(context.Background(), "first question", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ProcessQuery(context.Background(), "second question", first.SessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(r.seenLens) != 2 {
		t.Fatalf("expected 2 reasoning calls, got %d", len(r.seenLens))
	}
	// Second call must carry the first exchange plus the new user turn.
	if r.seenLens[1] != r.seenLens[0]+2 {
		t.Errorf("history not carried across turns: %v", r.seenLens)
	}
}

func TestProcessQueryRejectsEmptyText(t *testing.T) {
	r := &scriptedReasoner{outcomes: []reasoner.Outcome{{FinalText: "never"}}}
	svc := newTestAgent(r, &staticLoader{snap: exampleSnapshot()}, testAgentConfig())

	_, err := svc.ProcessQuery(context.Background(), "", "")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestProcessQueryFailureAppendsAssistantTurn(t *testing.T) {
	r := &scriptedReasoner{err: errors.New("boom")}
	svc := newTestAgent(r, &staticLoader{snap: exampleSnapshot()}, testAgentConfig())

	res, err := svc.ProcessQuery(context.Background(), "anything", "sess-4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	turns, _ := svc.sessions.Turns(context.Background(), "sess-4")
	last := turns[len(turns)-1]
	if last.Role != conversation.RoleAssistant || !strings.Contains(last.Content, res.Answer) {
		t.Errorf("failure text must land in history: %+v", last)
	}
}
