package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hostwise/assistant/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn and applies the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT,
			last_message TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS usage (
			user_id TEXT NOT NULL,
			period TEXT NOT NULL,
			used INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, period)
		)`,
		`CREATE TABLE IF NOT EXISTS bonus_credits (
			user_id TEXT PRIMARY KEY,
			credits INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS checkouts (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			pack_index INTEGER NOT NULL,
			credits INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a conversation owned by userID.
func (s *SQLiteStore) CreateConversation(ctx context.Context, userID string, conv *domain.Conversation) error {
	return insertConversation(ctx, s.db, userID, conv)
}

func insertConversation(ctx context.Context, db execer, userID string, conv *domain.Conversation) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, user_id, title, last_message, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, userID, nullString(conv.Title), nullString(conv.LastMessage), conv.UpdatedAt.UTC(), conv.UpdatedAt.UTC())
	return err
}

// GetConversation returns the conversation if userID owns it.
func (s *SQLiteStore) GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, title, last_message, updated_at FROM conversations WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// ListConversations returns userID's conversations, most recently updated first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, title, last_message, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []domain.Conversation{}
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	return conversations, rows.Err()
}

// SaveExchange stores one successful send: it charges the message, creates
// the conversation when NewConversation is set, appends both messages and
// updates the preview. Nothing is written unless every step succeeds.
func (s *SQLiteStore) SaveExchange(ctx context.Context, ex *Exchange) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := chargeMessage(ctx, tx, ex.UserID, ex.Period, ex.MonthlyLimit); err != nil {
		return err
	}

	conversationID := ex.ConversationID
	if ex.NewConversation != nil {
		if err := insertConversation(ctx, tx, ex.UserID, ex.NewConversation); err != nil {
			return err
		}
		conversationID = ex.NewConversation.ID
	}

	for _, msg := range []*domain.Message{&ex.UserMessage, &ex.Reply} {
		if err := insertMessage(ctx, tx, conversationID, msg); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message = ?, updated_at = ? WHERE conversation_id = ? AND user_id = ?`,
		ex.Preview, ex.Reply.CreatedAt.UTC(), conversationID, ex.UserID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit exchange: %w", err)
	}
	return nil
}

// DeleteConversation removes the conversation and its messages.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id IN (SELECT conversation_id FROM conversations WHERE conversation_id = ? AND user_id = ?)`,
		conversationID, userID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateMessage appends a message to a conversation.
func (s *SQLiteStore) CreateMessage(ctx context.Context, conversationID string, msg *domain.Message) error {
	return insertMessage(ctx, s.db, conversationID, msg)
}

func insertMessage(ctx context.Context, db execer, conversationID string, msg *domain.Message) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO messages (message_id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, conversationID, msg.Role, msg.Content, msg.CreatedAt.UTC())
	return err
}

// ListMessages returns the conversation's messages in insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetUsage returns the counters for userID in period. Missing rows read as zero.
func (s *SQLiteStore) GetUsage(ctx context.Context, userID, period string) (*Usage, error) {
	usage := &Usage{UserID: userID, Period: period}

	err := s.db.QueryRowContext(ctx,
		`SELECT used FROM usage WHERE user_id = ? AND period = ?`, userID, period).Scan(&usage.Used)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT credits FROM bonus_credits WHERE user_id = ?`, userID).Scan(&usage.BonusCredits)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return usage, nil
}

// chargeMessage takes one message from the monthly allowance, or from the
// bonus credits once the allowance is spent. Each branch is a single
// conditional write, so concurrent sends cannot both take the last message.
func chargeMessage(ctx context.Context, db execer, userID, period string, monthlyLimit int) error {
	if monthlyLimit > 0 {
		res, err := db.ExecContext(ctx,
			`INSERT INTO usage (user_id, period, used) VALUES (?, ?, 1)
			 ON CONFLICT(user_id, period) DO UPDATE SET used = used + 1 WHERE used < ?`,
			userID, period, monthlyLimit)
		if err != nil {
			return fmt.Errorf("failed to charge allowance: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n > 0 {
			return nil
		}
	}

	res, err := db.ExecContext(ctx,
		`UPDATE bonus_credits SET credits = credits - 1 WHERE user_id = ? AND credits > 0`, userID)
	if err != nil {
		return fmt.Errorf("failed to charge bonus credits: %w", err)
	}
	if err := requireAffected(res); errors.Is(err, ErrNotFound) {
		return ErrQuotaExhausted
	} else if err != nil {
		return err
	}
	return nil
}

// CreateCheckout stores a pending checkout.
func (s *SQLiteStore) CreateCheckout(ctx context.Context, checkout *Checkout) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkouts (session_id, user_id, pack_index, credits, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		checkout.SessionID, checkout.UserID, checkout.PackIndex, checkout.Credits, CheckoutPending, checkout.CreatedAt.UTC())
	return err
}

// CompleteCheckout marks the session completed and grants its credits.
// Completing an already completed session grants nothing.
func (s *SQLiteStore) CompleteCheckout(ctx context.Context, sessionID string) (*Checkout, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var checkout Checkout
	var completedAt sql.NullTime
	err = tx.QueryRowContext(ctx,
		`SELECT session_id, user_id, pack_index, credits, status, created_at, completed_at FROM checkouts WHERE session_id = ?`,
		sessionID).Scan(&checkout.SessionID, &checkout.UserID, &checkout.PackIndex, &checkout.Credits, &checkout.Status, &checkout.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		checkout.CompletedAt = &completedAt.Time
	}
	if checkout.Status == CheckoutCompleted {
		return &checkout, nil
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE checkouts SET status = ?, completed_at = ? WHERE session_id = ?`,
		CheckoutCompleted, now, sessionID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bonus_credits (user_id, credits) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET credits = credits + excluded.credits`,
		checkout.UserID, checkout.Credits); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit checkout: %w", err)
	}

	checkout.Status = CheckoutCompleted
	checkout.CompletedAt = &now
	return &checkout, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var conv domain.Conversation
	var title, lastMessage sql.NullString
	if err := row.Scan(&conv.ID, &title, &lastMessage, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	if title.Valid {
		conv.Title = &title.String
	}
	if lastMessage.Valid {
		conv.LastMessage = &lastMessage.String
	}
	return &conv, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
