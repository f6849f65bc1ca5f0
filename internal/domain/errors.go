// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrStorageNotFound indicates no matching data source is available.
var ErrStorageNotFound = errors.New("storage not found")

// ErrStorageUnreadable indicates a data source exists but cannot be parsed at all.
var ErrStorageUnreadable = errors.New("storage unreadable")

// ErrInvalidArgument indicates a tool was invoked with a missing, mistyped,
// or unparseable argument.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrUnknownTool indicates the reasoning engine requested a tool that is not
// registered. This is a schema contract violation between the reasoner and
// the registry.
var ErrUnknownTool = errors.New("unknown tool")

// ErrReasoningUnavailable indicates the reasoning service could not be
// reached (transport, auth, or rate-limit failure).
var ErrReasoningUnavailable = errors.New("reasoning unavailable")

// ErrLoopBoundExceeded indicates the conversation controller hit its maximum
// number of reasoning round-trips without producing a final answer.
var ErrLoopBoundExceeded = errors.New("loop bound exceeded")
