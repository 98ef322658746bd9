// Package domain defines the core domain models for the assistant session.
package domain

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// MessageState tags a message in the active list with its reconciliation status.
type MessageState string

const (
	// MessageStateConfirmed is a message the server knows about.
	MessageStateConfirmed MessageState = "CONFIRMED"
	// MessageStateOptimistic is a user message appended before the server answered.
	MessageStateOptimistic MessageState = "OPTIMISTIC"
	// MessageStateFailed marks a send the server did not accept, and the local
	// assistant notice that reports it. Neither is persisted server-side.
	MessageStateFailed MessageState = "FAILED"
)

// ID prefixes for locally generated message identifiers.
const (
	ProvisionalIDPrefix = "temp-"
	LocalErrorIDPrefix  = "error-"
)
