// Package present holds the display derivations the terminal view uses.
package present

import (
	"strings"
	"time"

	"github.com/hostwise/assistant/internal/domain"
)

const (
	// UntitledConversation is shown for conversations without a title.
	UntitledConversation = "Conversa sem título"

	labelToday     = "Hoje"
	labelYesterday = "Ontem"
	dateLayout     = "02/01/2006"
)

// ConversationGroup is a run of conversations sharing a day label.
type ConversationGroup struct {
	Label         string
	Conversations []domain.Conversation
}

// GroupConversations buckets conversations by the calendar day of their
// UpdatedAt in loc. Groups keep first-appearance order and members keep
// input order.
func GroupConversations(conversations []domain.Conversation, now time.Time, loc *time.Location) []ConversationGroup {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := startOfDay(now)
	yesterday := today.AddDate(0, 0, -1)

	var groups []ConversationGroup
	index := make(map[string]int)
	for _, conv := range conversations {
		label := dayLabel(conv.UpdatedAt.In(loc), today, yesterday)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, ConversationGroup{Label: label})
		}
		groups[i].Conversations = append(groups[i].Conversations, conv)
	}
	return groups
}

func dayLabel(t, today, yesterday time.Time) string {
	day := startOfDay(t)
	switch {
	case day.Equal(today):
		return labelToday
	case day.Equal(yesterday):
		return labelYesterday
	default:
		return t.Format(dateLayout)
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ConversationTitle returns the title or the untitled placeholder.
func ConversationTitle(conv domain.Conversation) string {
	if conv.Title == nil || strings.TrimSpace(*conv.Title) == "" {
		return UntitledConversation
	}
	return *conv.Title
}

// ConversationPreview returns the last message preview, or "".
func ConversationPreview(conv domain.Conversation) string {
	if conv.LastMessage == nil {
		return ""
	}
	return *conv.LastMessage
}
