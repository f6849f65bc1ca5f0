package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gridsage/gridsage/internal/adapter/otel"
	"github.com/gridsage/gridsage/internal/adapter/ws"
	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/domain"
	"github.com/gridsage/gridsage/internal/domain/conversation"
	"github.com/gridsage/gridsage/internal/port/broadcast"
	"github.com/gridsage/gridsage/internal/port/messagequeue"
	"github.com/gridsage/gridsage/internal/port/reasoner"
	"github.com/gridsage/gridsage/internal/port/toolcall"
	"github.com/gridsage/gridsage/internal/resilience"
)

// The only texts a user ever sees besides a real answer. Raw errors stay in
// logs and events.
const (
	MsgDataUnavailable = "I'm sorry, but the energy data needed to answer that is currently unavailable. Please try again later."
	MsgTryAgain        = "I could not complete that request. Please try again."
)

// runState tracks where the controller loop is for a single query.
type runState int

const (
	stateReasoning runState = iota
	stateDispatching
	stateDone
	stateFailed
)

// QueryResult is the terminal outcome of one user query.
type QueryResult struct {
	SessionID  string `json:"session_id"`
	Answer     string `json:"answer"`
	Status     string `json:"status"` // "done" or "failed"
	RoundTrips int    `json:"round_trips"`
	ToolCalls  int    `json:"tool_calls"`
}

// AgentService runs the reasoning loop for user queries: it alternates
// between the reasoning client and the tool registry until a final answer
// is produced or a bound is hit.
type AgentService struct {
	reasoner reasoner.Reasoner
	tools    *toolcall.Registry
	loader   SnapshotLoader
	sessions *SessionManager
	breaker  *resilience.Breaker
	cfg      config.Agent

	queue   messagequeue.Queue
	hub     broadcast.Broadcaster
	metrics *otel.Metrics
}

// NewAgentService creates an AgentService with its required dependencies.
func NewAgentService(
	r reasoner.Reasoner,
	tools *toolcall.Registry,
	loader SnapshotLoader,
	sessions *SessionManager,
	breaker *resilience.Breaker,
	cfg config.Agent,
) *AgentService {
	return &AgentService{
		reasoner: r,
		tools:    tools,
		loader:   loader,
		sessions: sessions,
		breaker:  breaker,
		cfg:      cfg,
	}
}

// SetQueue sets the message queue for lifecycle events.
func (s *AgentService) SetQueue(q messagequeue.Queue) { s.queue = q }

// SetBroadcaster sets the WebSocket hub for live turn streaming.
func (s *AgentService) SetBroadcaster(hub broadcast.Broadcaster) { s.hub = hub }

// SetMetrics sets the metric instruments.
func (s *AgentService) SetMetrics(m *otel.Metrics) { s.metrics = m }

// ProcessQuery appends the user's text to its session conversation and runs
// the controller loop to completion. The returned answer is always safe to
// show the user.
func (s *AgentService) ProcessQuery(ctx context.Context, userText, sessionID string) (*QueryResult, error) {
	if userText == "" {
		return nil, fmt.Errorf("%w: query text is required", domain.ErrInvalidArgument)
	}

	conv, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	start := time.Now()
	s.publishStarted(ctx, conv.SessionID, userText)
	if s.metrics != nil {
		s.metrics.QueriesStarted.Add(ctx, 1)
	}

	firstNew := len(conv.Turns)
	s.appendTurn(ctx, conv, conversation.UserTurn(userText))

	res, runErr := s.run(ctx, conv)
	res.SessionID = conv.SessionID

	if err := s.sessions.Commit(ctx, conv, conv.Turns[firstNew:]); err != nil {
		slog.Warn("failed to persist conversation turns", "session_id", conv.SessionID, "error", err)
	}

	s.finish(ctx, res, runErr, time.Since(start))
	return res, nil
}

// run drives the state machine over the conversation until a terminal state.
// The returned error describes why the run failed; the QueryResult always
// carries a sanctioned answer text.
func (s *AgentService) run(ctx context.Context, conv *conversation.Conversation) (*QueryResult, error) {
	res := &QueryResult{}

	state := stateReasoning
	var requests []conversation.ToolRequest
	var failMsg string
	var failErr error

	// Data must be reachable before any reasoning happens. Storage failures
	// are structural and surface immediately, no retry.
	if _, err := s.loader.Load(ctx); err != nil {
		slog.Error("record store unavailable", "session_id", conv.SessionID, "error", err)
		state, failMsg, failErr = stateFailed, MsgDataUnavailable, err
	}

	for {
		switch state {
		case stateReasoning:
			if res.RoundTrips >= s.cfg.MaxRoundTrips {
				slog.Warn("round-trip bound exceeded",
					"session_id", conv.SessionID, "max", s.cfg.MaxRoundTrips)
				state, failMsg, failErr = stateFailed, MsgTryAgain, domain.ErrLoopBoundExceeded
				continue
			}
			res.RoundTrips++

			outcome, err := s.reason(ctx, conv)
			if err != nil {
				slog.Error("reasoning unavailable",
					"session_id", conv.SessionID, "round_trips", res.RoundTrips, "error", err)
				state, failMsg, failErr = stateFailed, MsgTryAgain, err
				continue
			}
			if outcome.IsFinal() {
				s.appendTurn(ctx, conv, conversation.AssistantTurn(outcome.FinalText))
				res.Answer = outcome.FinalText
				state = stateDone
				continue
			}
			s.appendTurn(ctx, conv, conversation.AssistantToolCallTurn(outcome.ToolRequests))
			requests = outcome.ToolRequests
			state = stateDispatching

		case stateDispatching:
			// In-order dispatch; results completed before a cancellation are
			// kept so partial progress is never discarded silently.
			state = stateReasoning
			for _, req := range requests {
				if err := ctx.Err(); err != nil {
					state, failMsg, failErr = stateFailed, MsgTryAgain, err
					break
				}
				result := s.tools.Invoke(ctx, req)
				res.ToolCalls++
				if s.metrics != nil {
					s.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
						attribute.String("tool", req.Name),
						attribute.Bool("error", result.IsError)))
				}
				s.appendTurn(ctx, conv, conversation.ToolTurn(result))
			}
			requests = nil

		case stateDone:
			res.Status = "done"
			return res, nil

		case stateFailed:
			s.appendTurn(ctx, conv, conversation.AssistantTurn(failMsg))
			res.Answer = failMsg
			res.Status = "failed"
			return res, failErr
		}
	}
}

// reason calls the reasoning client through the retry and circuit breaker
// policies. The client itself never retries.
func (s *AgentService) reason(ctx context.Context, conv *conversation.Conversation) (reasoner.Outcome, error) {
	var outcome reasoner.Outcome
	err := resilience.Retry(ctx, s.cfg.MaxRetries, s.cfg.RetryBackoff, func() error {
		return s.breaker.Execute(func() error {
			var rerr error
			outcome, rerr = s.reasoner.Reason(ctx, conv.Turns, s.tools.Specs())
			return rerr
		})
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = fmt.Errorf("%w: %w", domain.ErrReasoningUnavailable, err)
		}
		return reasoner.Outcome{}, err
	}
	return outcome, nil
}

func (s *AgentService) appendTurn(ctx context.Context, conv *conversation.Conversation, t conversation.Turn) {
	conv.Append(t)
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventTurnAppended, map[string]any{
			"session_id": conv.SessionID,
			"turn":       conv.Turns[len(conv.Turns)-1],
		})
	}
}

func (s *AgentService) finish(ctx context.Context, res *QueryResult, runErr error, elapsed time.Duration) {
	if s.metrics != nil {
		if res.Status == "done" {
			s.metrics.QueriesCompleted.Add(ctx, 1)
		} else {
			s.metrics.QueriesFailed.Add(ctx, 1)
		}
		s.metrics.RoundTrips.Record(ctx, int64(res.RoundTrips))
		s.metrics.QueryDuration.Record(ctx, elapsed.Seconds())
	}

	if s.queue != nil {
		payload := messagequeue.QueryCompletedPayload{
			SessionID:  res.SessionID,
			Status:     res.Status,
			RoundTrips: res.RoundTrips,
			ToolCalls:  res.ToolCalls,
			DurationMS: elapsed.Milliseconds(),
		}
		if runErr != nil {
			payload.Error = runErr.Error()
		}
		if data, err := json.Marshal(payload); err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectQueryCompleted, data); err != nil {
				slog.Warn("failed to publish query completed event", "error", err)
			}
		}
	}
}

func (s *AgentService) publishStarted(ctx context.Context, sessionID, text string) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(messagequeue.QueryStartedPayload{SessionID: sessionID, Text: text})
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectQueryStarted, data); err != nil {
		slog.Warn("failed to publish query started event", "error", err)
	}
}
