package domain

import (
	"strings"
	"time"
)

// Message is a single entry of a conversation.
type Message struct {
	ID        string       `json:"id"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"createdAt"`
	State     MessageState `json:"-"`
}

// IsProvisional reports whether the id was generated locally.
func (m Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalIDPrefix) || strings.HasPrefix(m.ID, LocalErrorIDPrefix)
}

// Conversation is an entry of the conversation list.
type Conversation struct {
	ID          string    `json:"id"`
	Title       *string   `json:"title"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastMessage *string   `json:"lastMessage"`
}

// UsageQuota is the monthly message allowance snapshot.
type UsageQuota struct {
	Used           int       `json:"used"`
	Limit          int       `json:"limit"`
	BonusCredits   int       `json:"bonusCredits"`
	TotalAvailable int       `json:"totalAvailable"`
	PeriodEnd      time.Time `json:"periodEnd"`
}

// Available returns (limit - used) + bonusCredits, clamped at zero.
func (q UsageQuota) Available() int {
	total := q.Limit - q.Used + q.BonusCredits
	if total < 0 {
		return 0
	}
	return total
}

// Derive returns a copy whose TotalAvailable is recomputed from the counters.
func (q UsageQuota) Derive() UsageQuota {
	q.TotalAvailable = q.Available()
	return q
}

// Exhausted reports whether no message can be sent under this snapshot.
func (q UsageQuota) Exhausted() bool {
	return q.TotalAvailable <= 0
}

// CreditPack is a purchasable bundle of bonus credits.
type CreditPack struct {
	Index        int    `json:"index"`
	Credits      int    `json:"credits"`
	PriceInCents int    `json:"priceInCents"`
	Label        string `json:"label"`
	Available    bool   `json:"available"`
}
