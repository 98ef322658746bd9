package session

import (
	"sync"

	"github.com/hostwise/assistant/internal/domain"
)

// ConversationStore caches the conversation list and the message list of the
// active conversation. Messages are kept in append order.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations []domain.Conversation
	messages      []domain.Message
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: []domain.Conversation{},
		messages:      []domain.Message{},
	}
}

// Messages returns a copy of the active message list.
func (s *ConversationStore) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Conversations returns a copy of the conversation list.
func (s *ConversationStore) Conversations() []domain.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// ReplaceMessages swaps the active list for messages loaded from the server.
func (s *ConversationStore) ReplaceMessages(messages []domain.Message) {
	next := make([]domain.Message, len(messages))
	for i, m := range messages {
		m.State = domain.MessageStateConfirmed
		next[i] = m
	}

	s.mu.Lock()
	s.messages = next
	s.mu.Unlock()
}

// ClearMessages empties the active list.
func (s *ConversationStore) ClearMessages() {
	s.mu.Lock()
	s.messages = []domain.Message{}
	s.mu.Unlock()
}

// AppendMessage adds a message at the end of the active list.
func (s *ConversationStore) AppendMessage(m domain.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

// SetMessageState retags the message with the given id. It reports whether
// the message was found.
func (s *ConversationStore) SetMessageState(id string, state domain.MessageState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages[i].State = state
			return true
		}
	}
	return false
}

// DiscardOptimistic removes the optimistic message with the given id.
// Confirmed or failed messages are never removed.
func (s *ConversationStore) DiscardOptimistic(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]domain.Message, 0, len(s.messages))
	removed := false
	for _, m := range s.messages {
		if m.ID == id && m.State == domain.MessageStateOptimistic {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	return removed
}

// ReplaceConversations swaps the conversation list for an authoritative one.
func (s *ConversationStore) ReplaceConversations(conversations []domain.Conversation) {
	next := make([]domain.Conversation, len(conversations))
	copy(next, conversations)

	s.mu.Lock()
	s.conversations = next
	s.mu.Unlock()
}

// RemoveConversation drops a conversation from the cached list.
func (s *ConversationStore) RemoveConversation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]domain.Conversation, 0, len(s.conversations))
	removed := false
	for _, c := range s.conversations {
		if c.ID == id {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	s.conversations = kept
	return removed
}
