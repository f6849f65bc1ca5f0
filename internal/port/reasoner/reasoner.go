// Package reasoner defines the port for the external reasoning service.
package reasoner

import (
	"context"

	"github.com/gridsage/gridsage/internal/domain/conversation"
	"github.com/gridsage/gridsage/internal/port/toolcall"
)

// Outcome is the result of one reasoning step: either a final answer or an
// ordered sequence of tool requests, never both and never empty.
type Outcome struct {
	FinalText    string
	ToolRequests []conversation.ToolRequest
}

// IsFinal reports whether the outcome carries a final answer.
func (o Outcome) IsFinal() bool {
	return len(o.ToolRequests) == 0
}

// Reasoner sends the accumulated conversation plus the tool schemas to an
// external reasoning service. Implementations must not retry transport
// failures; retry policy belongs to the controller. Failures wrap
// domain.ErrReasoningUnavailable.
type Reasoner interface {
	Reason(ctx context.Context, turns []conversation.Turn, specs []toolcall.Spec) (Outcome, error)
}
