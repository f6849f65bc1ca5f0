// Package conversation defines the chat thread model shared by the
// controller, the reasoning client, and the persistence layer.
package conversation

import "time"

// Roles of a conversation turn. System turns are synthesized at the reasoner
// boundary and never stored.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolRequest is a single tool invocation requested by the reasoning engine.
// It is produced once by the reasoner and consumed exactly once by the
// controller's dispatch step.
type ToolRequest struct {
	CallID    string         `json:"call_id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of dispatching one ToolRequest.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Turn is a single message in a conversation.
type Turn struct {
	Role       string        `json:"role"`
	Content    string        `json:"content"`
	ToolCalls  []ToolRequest `json:"tool_calls,omitempty"`   // assistant turns only
	ToolCallID string        `json:"tool_call_id,omitempty"` // tool turns only
	ToolName   string        `json:"tool_name,omitempty"`
	IsError    bool          `json:"is_error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Conversation is an ordered, append-only sequence of turns owned by exactly
// one session. It is never mutated in place.
type Conversation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Turns     []Turn    `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Append adds a turn and stamps it.
func (c *Conversation) Append(t Turn) {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	c.Turns = append(c.Turns, t)
	c.UpdatedAt = now
}

// UserTurn builds a user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant turn with final text.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// AssistantToolCallTurn builds an assistant turn carrying tool requests.
func AssistantToolCallTurn(requests []ToolRequest) Turn {
	return Turn{Role: RoleAssistant, ToolCalls: requests}
}

// ToolTurn folds a ToolResult back into the conversation, preserving the
// call ID so the reasoner can correlate results to requests.
func ToolTurn(res ToolResult) Turn {
	return Turn{
		Role:       RoleTool,
		Content:    res.Content,
		ToolCallID: res.CallID,
		ToolName:   res.Name,
		IsError:    res.IsError,
	}
}
