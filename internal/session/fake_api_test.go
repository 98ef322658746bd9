package session

import (
	"context"
	"errors"
	"sync"

	"github.com/hostwise/assistant/internal/domain"
)

var errBoom = errors.New("boom")

// fakeAPI is an in-memory API whose behaviour is set per test.
type fakeAPI struct {
	mu sync.Mutex

	sendFn        func(req domain.SendRequest) domain.SendResult
	sendGate      chan struct{}
	sendStarted   chan struct{}
	conversations []domain.Conversation
	listErr       error
	messages      map[string][]domain.Message
	messagesErr   error
	deleteErr     error
	usage         *domain.UsageQuota
	usageErr      error
	usageMissing  bool

	sendCalls   []domain.SendRequest
	listCalls   int
	usageCalls  int
	deleteCalls []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{messages: map[string][]domain.Message{}}
}

func (f *fakeAPI) SendMessage(ctx context.Context, req domain.SendRequest) domain.SendResult {
	f.mu.Lock()
	f.sendCalls = append(f.sendCalls, req)
	gate, started, fn := f.sendGate, f.sendStarted, f.sendFn
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if fn == nil {
		return domain.SendFailure{}
	}
	return fn(req)
}

func (f *fakeAPI) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Conversation, len(f.conversations))
	copy(out, f.conversations)
	return out, nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return f.messages[conversationID], nil
}

func (f *fakeAPI) DeleteConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, conversationID)
	return f.deleteErr
}

func (f *fakeAPI) GetUsage(ctx context.Context) (*domain.UsageQuota, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usageCalls++
	if f.usageErr != nil {
		return nil, f.usageErr
	}
	if f.usageMissing {
		return nil, nil
	}
	if f.usage == nil {
		return &domain.UsageQuota{Limit: 10}, nil
	}
	q := *f.usage
	return &q, nil
}

func (f *fakeAPI) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sendCalls)
}

func title(s string) *string { return &s }
