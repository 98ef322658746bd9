// Package repository persists the dev server's chat data.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hostwise/assistant/internal/domain"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExhausted is returned when neither the monthly allowance nor
	// bonus credits can pay for a message.
	ErrQuotaExhausted = errors.New("message quota exhausted")
)

// CheckoutStatus is the lifecycle of a checkout session.
type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "PENDING"
	CheckoutCompleted CheckoutStatus = "COMPLETED"
)

// Checkout is a credit pack purchase started by a user.
type Checkout struct {
	SessionID   string
	UserID      string
	PackIndex   int
	Credits     int
	Status      CheckoutStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Exchange is a user message and its reply, saved together.
type Exchange struct {
	UserID       string
	Period       string
	MonthlyLimit int
	// NewConversation is created in the same transaction when set;
	// otherwise ConversationID must name an existing conversation.
	NewConversation *domain.Conversation
	ConversationID  string
	UserMessage     domain.Message
	Reply           domain.Message
	Preview         string
}

// Usage is a user's counters for one billing period.
type Usage struct {
	UserID       string
	Period       string
	Used         int
	BonusCredits int
}

// Store defines the interface for dev server storage operations.
type Store interface {
	// Conversation operations
	CreateConversation(ctx context.Context, userID string, conv *domain.Conversation) error
	GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	DeleteConversation(ctx context.Context, userID, conversationID string) error

	// Message operations
	CreateMessage(ctx context.Context, conversationID string, msg *domain.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)

	// Usage operations
	GetUsage(ctx context.Context, userID, period string) (*Usage, error)
	SaveExchange(ctx context.Context, ex *Exchange) error

	// Checkout operations
	CreateCheckout(ctx context.Context, checkout *Checkout) error
	CompleteCheckout(ctx context.Context, sessionID string) (*Checkout, error)

	Close() error
}
