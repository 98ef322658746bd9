package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hostwise/assistant/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func strPtr(s string) *string { return &s }

func TestSQLiteStoreConversationsAndMessages(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.CreateConversation(ctx, "u1", &domain.Conversation{ID: "c1", Title: strPtr("Check-in"), UpdatedAt: base}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if err := store.CreateConversation(ctx, "u1", &domain.Conversation{ID: "c2", UpdatedAt: base.Add(time.Minute)}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if err := store.CreateConversation(ctx, "u2", &domain.Conversation{ID: "c3", UpdatedAt: base}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	err := store.SaveExchange(ctx, &Exchange{
		UserID:         "u1",
		Period:         "2026-03",
		MonthlyLimit:   10,
		ConversationID: "c1",
		UserMessage:    domain.Message{ID: "m1", Role: domain.RoleUser, Content: "hello", CreatedAt: base},
		Reply:          domain.Message{ID: "m2", Role: domain.RoleAssistant, Content: "hi there", CreatedAt: base.Add(2 * time.Minute)},
		Preview:        "hi there",
	})
	if err != nil {
		t.Fatalf("SaveExchange failed: %v", err)
	}

	convs, err := store.ListConversations(ctx, "u1")
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 2 || convs[0].ID != "c1" || convs[1].ID != "c2" {
		t.Fatalf("unexpected conversations: %+v", convs)
	}
	if convs[0].LastMessage == nil || *convs[0].LastMessage != "hi there" {
		t.Fatalf("unexpected preview: %+v", convs[0])
	}
	if convs[1].Title != nil {
		t.Fatalf("expected nil title, got %q", *convs[1].Title)
	}

	messages, err := store.ListMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 || messages[0].ID != "m1" || messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected messages: %+v", messages)
	}

	if _, err := store.GetConversation(ctx, "u2", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
	got, err := store.GetConversation(ctx, "u1", "c1")
	if err != nil || got.Title == nil || *got.Title != "Check-in" {
		t.Fatalf("GetConversation = %+v, %v", got, err)
	}
}

func TestSQLiteStoreDeleteConversation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	now := time.Now()
	if err := store.CreateConversation(ctx, "u1", &domain.Conversation{ID: "c1", UpdatedAt: now}); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if err := store.CreateMessage(ctx, "c1", &domain.Message{ID: "m1", Role: domain.RoleUser, Content: "x", CreatedAt: now}); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}

	if err := store.DeleteConversation(ctx, "u2", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting another user's conversation, got %v", err)
	}
	if err := store.DeleteConversation(ctx, "u1", "c1"); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if err := store.DeleteConversation(ctx, "u1", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	messages, err := store.ListMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected messages to be removed, got %d", len(messages))
	}
}

func exchange(userID, conversationID string, newConv bool, n int) *Exchange {
	now := time.Date(2026, 3, 1, 12, 0, n, 0, time.UTC)
	ex := &Exchange{
		UserID:         userID,
		Period:         "2026-03",
		MonthlyLimit:   2,
		ConversationID: conversationID,
		UserMessage:    domain.Message{ID: fmt.Sprintf("u-%d", n), Role: domain.RoleUser, Content: "oi", CreatedAt: now},
		Reply:          domain.Message{ID: fmt.Sprintf("a-%d", n), Role: domain.RoleAssistant, Content: "olá", CreatedAt: now},
		Preview:        "olá",
	}
	if newConv {
		ex.NewConversation = &domain.Conversation{ID: conversationID, UpdatedAt: now}
	}
	return ex
}

func TestSQLiteStoreSaveExchangeCreatesConversation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	if err := store.SaveExchange(ctx, exchange("u1", "c1", true, 1)); err != nil {
		t.Fatalf("SaveExchange failed: %v", err)
	}

	conv, err := store.GetConversation(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conv.LastMessage == nil || *conv.LastMessage != "olá" {
		t.Fatalf("unexpected preview: %+v", conv)
	}
	messages, err := store.ListMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(messages) != 2 || messages[0].Role != domain.RoleUser || messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected messages: %+v", messages)
	}
}

func TestSQLiteStoreSaveExchangeRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	// Unknown conversation: the charge and messages must not persist.
	if err := store.SaveExchange(ctx, exchange("u1", "missing", false, 1)); err == nil {
		t.Fatal("expected error for unknown conversation")
	}
	usage, err := store.GetUsage(ctx, "u1", "2026-03")
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.Used != 0 {
		t.Fatalf("expected no charge after rollback, got %+v", usage)
	}
	if messages, _ := store.ListMessages(ctx, "missing"); len(messages) != 0 {
		t.Fatalf("expected no messages after rollback, got %d", len(messages))
	}

	// Quota exhausted: the new conversation must not persist.
	for i := 0; i < 2; i++ {
		if err := store.SaveExchange(ctx, exchange("u1", fmt.Sprintf("c%d", i), true, i)); err != nil {
			t.Fatalf("SaveExchange failed: %v", err)
		}
	}
	if err := store.SaveExchange(ctx, exchange("u1", "c-over", true, 9)); !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted, got %v", err)
	}
	if _, err := store.GetConversation(ctx, "u1", "c-over"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rejected conversation to be absent, got %v", err)
	}
	convs, err := store.ListConversations(ctx, "u1")
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
}

func TestSQLiteStoreUsageAndCheckout(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	usage, err := store.GetUsage(ctx, "u1", "2026-03")
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.Used != 0 || usage.BonusCredits != 0 {
		t.Fatalf("expected zero usage, got %+v", usage)
	}

	for i := 0; i < 2; i++ {
		if err := chargeMessage(ctx, store.db, "u1", "2026-03", 2); err != nil {
			t.Fatalf("chargeMessage failed: %v", err)
		}
	}
	if err := chargeMessage(ctx, store.db, "u1", "2026-03", 2); !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("expected ErrQuotaExhausted with no allowance left, got %v", err)
	}

	checkout := &Checkout{SessionID: "cs_1", UserID: "u1", PackIndex: 0, Credits: 10, CreatedAt: time.Now()}
	if err := store.CreateCheckout(ctx, checkout); err != nil {
		t.Fatalf("CreateCheckout failed: %v", err)
	}
	completed, err := store.CompleteCheckout(ctx, "cs_1")
	if err != nil {
		t.Fatalf("CompleteCheckout failed: %v", err)
	}
	if completed.Status != CheckoutCompleted || completed.CompletedAt == nil {
		t.Fatalf("unexpected checkout: %+v", completed)
	}
	if _, err := store.CompleteCheckout(ctx, "cs_1"); err != nil {
		t.Fatalf("second CompleteCheckout failed: %v", err)
	}

	if err := chargeMessage(ctx, store.db, "u1", "2026-03", 2); err != nil {
		t.Fatalf("chargeMessage with bonus failed: %v", err)
	}

	usage, err = store.GetUsage(ctx, "u1", "2026-03")
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if usage.Used != 2 || usage.BonusCredits != 9 {
		t.Fatalf("expected used=2 bonus=9, got %+v", usage)
	}

	next, err := store.GetUsage(ctx, "u1", "2026-04")
	if err != nil {
		t.Fatalf("GetUsage failed: %v", err)
	}
	if next.Used != 0 || next.BonusCredits != 9 {
		t.Fatalf("bonus credits should carry across periods, got %+v", next)
	}

	if _, err := store.CompleteCheckout(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
