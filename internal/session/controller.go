// Package session implements the assistant chat session: the active
// conversation, its message history, optimistic sends and the quota gate.
package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hostwise/assistant/internal/domain"
	"github.com/hostwise/assistant/internal/log"
)

// FallbackErrorMessage is shown when a send fails without server text.
const FallbackErrorMessage = "Desculpe, houve um erro ao processar sua pergunta. Tente novamente."

// API is the transport the controller depends on.
type API interface {
	SendMessage(ctx context.Context, req domain.SendRequest) domain.SendResult
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	GetUsage(ctx context.Context) (*domain.UsageQuota, error)
}

// SendOutcome reports which branch a SendMessage call took.
type SendOutcome int

const (
	// SendSkipped means nothing happened: blank text or a send already in flight.
	SendSkipped SendOutcome = iota
	// SendReplied means the assistant reply was appended.
	SendReplied
	// SendQuotaExceeded means the optimistic message was rolled back and the
	// purchase flow was opened.
	SendQuotaExceeded
	// SendFailed means a local error reply was appended.
	SendFailed
)

func (o SendOutcome) String() string {
	switch o {
	case SendReplied:
		return "replied"
	case SendQuotaExceeded:
		return "quota_exceeded"
	case SendFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// State is a read-only snapshot for the view layer.
type State struct {
	// ConversationID is empty while the session is on a draft conversation.
	ConversationID string
	Messages       []domain.Message
	Conversations  []domain.Conversation
	Usage          *domain.UsageQuota
	IsSending      bool
	ShowPurchase   bool
}

// IsDraft reports whether the active conversation has no server id yet.
func (s State) IsDraft() bool {
	return s.ConversationID == ""
}

// QuotaExhausted reports whether the view should swap the input for the
// purchase button. It is advisory; the server has the final word.
func (s State) QuotaExhausted() bool {
	return s.Usage != nil && s.Usage.Exhausted()
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = log.OrNop(l) }
}

// WithOnChange registers a hook called after every state mutation.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithClock overrides the time source used for local messages.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides the generator behind local message ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// Controller orchestrates one chat session. It exclusively owns its
// ConversationStore and UsageTracker.
type Controller struct {
	api      API
	store    *ConversationStore
	usage    *UsageTracker
	logger   *zap.Logger
	onChange func()
	now      func() time.Time
	newID    func() string

	sending atomic.Bool

	mu             sync.Mutex
	conversationID string
	showPurchase   bool
}

// NewController creates a controller with a fresh store and tracker.
func NewController(api API, opts ...Option) *Controller {
	c := &Controller{
		api:    api,
		store:  NewConversationStore(),
		usage:  NewUsageTracker(),
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	conversationID := c.conversationID
	showPurchase := c.showPurchase
	c.mu.Unlock()

	return State{
		ConversationID: conversationID,
		Messages:       c.store.Messages(),
		Conversations:  c.store.Conversations(),
		Usage:          c.usage.Snapshot(),
		IsSending:      c.sending.Load(),
		ShowPurchase:   showPurchase,
	}
}

// Start performs the initial fetch of usage and the conversation list.
func (c *Controller) Start(ctx context.Context) {
	c.RefreshUsage(ctx)
	c.RefreshConversations(ctx)
}

// SendMessage sends text in the active conversation. The user message is
// appended before the call is made and reconciled once the server answers.
// Blank text and calls made while another send is in flight are no-ops.
func (c *Controller) SendMessage(ctx context.Context, text string) SendOutcome {
	if strings.TrimSpace(text) == "" {
		return SendSkipped
	}
	if !c.sending.CompareAndSwap(false, true) {
		return SendSkipped
	}
	defer c.sending.Store(false)

	optimistic := domain.Message{
		ID:        domain.ProvisionalIDPrefix + c.newID(),
		Role:      domain.RoleUser,
		Content:   text,
		CreatedAt: c.now(),
		State:     domain.MessageStateOptimistic,
	}
	c.store.AppendMessage(optimistic)

	c.mu.Lock()
	conversationID := c.conversationID
	c.mu.Unlock()
	c.notify()

	result := c.api.SendMessage(ctx, domain.SendRequest{
		ConversationID: conversationID,
		Message:        text,
	})

	outcome := c.apply(optimistic.ID, result)
	c.sending.Store(false)
	c.notify()

	c.RefreshUsage(ctx)
	if outcome == SendReplied {
		c.RefreshConversations(ctx)
	}
	return outcome
}

// apply reconciles the optimistic message with the send result.
func (c *Controller) apply(provisionalID string, result domain.SendResult) SendOutcome {
	switch r := result.(type) {
	case domain.SendSuccess:
		c.mu.Lock()
		c.conversationID = r.ConversationID
		c.mu.Unlock()

		c.store.SetMessageState(provisionalID, domain.MessageStateConfirmed)
		reply := r.Reply
		reply.State = domain.MessageStateConfirmed
		c.store.AppendMessage(reply)
		return SendReplied

	case domain.QuotaExceeded:
		c.store.DiscardOptimistic(provisionalID)
		c.mu.Lock()
		c.showPurchase = true
		c.mu.Unlock()
		c.logger.Info("chat quota exceeded, opening purchase flow")
		return SendQuotaExceeded

	case domain.SendFailure:
		c.logger.Warn("chat send failed", zap.String("server_message", r.Message), zap.Error(r.Err))
		c.store.SetMessageState(provisionalID, domain.MessageStateFailed)
		content := r.Message
		if content == "" {
			content = FallbackErrorMessage
		}
		c.store.AppendMessage(domain.Message{
			ID:        domain.LocalErrorIDPrefix + c.newID(),
			Role:      domain.RoleAssistant,
			Content:   content,
			CreatedAt: c.now(),
			State:     domain.MessageStateFailed,
		})
		return SendFailed

	default:
		// An unknown result is reported like any other failure.
		return c.apply(provisionalID, domain.SendFailure{})
	}
}

// LoadConversation makes id the active conversation and loads its messages.
// A failed load leaves an empty list rather than a stale one.
func (c *Controller) LoadConversation(ctx context.Context, id string) {
	c.mu.Lock()
	c.conversationID = id
	c.mu.Unlock()
	c.notify()

	messages, err := c.api.ListMessages(ctx, id)
	if err != nil {
		c.logger.Warn("failed to load conversation", zap.String("conversation_id", id), zap.Error(err))
		c.store.ClearMessages()
	} else {
		c.store.ReplaceMessages(messages)
	}
	c.notify()
}

// StartNewConversation switches to a draft conversation. The server-side
// conversation is created by the next successful send.
func (c *Controller) StartNewConversation() {
	c.resetToDraft()
	c.notify()
}

func (c *Controller) resetToDraft() {
	c.mu.Lock()
	c.conversationID = ""
	c.mu.Unlock()
	c.store.ClearMessages()
}

// DeleteConversation removes id from the list before calling the server.
// On failure the list is replaced by a fresh fetch instead of being patched.
func (c *Controller) DeleteConversation(ctx context.Context, id string) {
	c.store.RemoveConversation(id)

	c.mu.Lock()
	active := c.conversationID == id
	c.mu.Unlock()
	if active {
		c.resetToDraft()
	}
	c.notify()

	if err := c.api.DeleteConversation(ctx, id); err != nil {
		c.logger.Warn("failed to delete conversation, reconciling list", zap.String("conversation_id", id), zap.Error(err))
		c.RefreshConversations(ctx)
	}
}

// RefreshUsage refetches the quota snapshot. On failure the previous
// snapshot is kept.
func (c *Controller) RefreshUsage(ctx context.Context) {
	quota, err := c.api.GetUsage(ctx)
	if err != nil {
		c.logger.Warn("failed to refresh usage", zap.Error(err))
		return
	}
	if quota == nil {
		c.logger.Warn("usage response carried no quota")
		return
	}
	c.usage.Set(*quota)
	c.notify()
}

// RefreshConversations refetches the conversation list. On failure the
// cached list is kept.
func (c *Controller) RefreshConversations(ctx context.Context) {
	conversations, err := c.api.ListConversations(ctx)
	if err != nil {
		c.logger.Warn("failed to refresh conversations", zap.Error(err))
		return
	}
	c.store.ReplaceConversations(conversations)
	c.notify()
}

// OpenPurchase shows the credit purchase flow.
func (c *Controller) OpenPurchase() {
	c.setShowPurchase(true)
}

// DismissPurchase hides the credit purchase flow.
func (c *Controller) DismissPurchase() {
	c.setShowPurchase(false)
}

func (c *Controller) setShowPurchase(v bool) {
	c.mu.Lock()
	c.showPurchase = v
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
