// Package assistant produces the dev server's assistant replies.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hostwise/assistant/internal/domain"
)

// Responder generates the assistant reply for a conversation.
type Responder interface {
	Reply(ctx context.Context, history []domain.Message) (string, error)
}

// topic maps keywords to a fixed answer.
type topic struct {
	keywords []string
	answer   string
}

var defaultTopics = []topic{
	{
		keywords: []string{"check-in", "checkin", "chegada"},
		answer:   "Para o check-in, envie as instruções de acesso ao hóspede 24 horas antes da chegada e confirme o horário previsto.",
	},
	{
		keywords: []string{"limpeza", "faxina"},
		answer:   "Agende a limpeza logo após o check-out e reserve pelo menos 3 horas antes da próxima chegada.",
	},
	{
		keywords: []string{"preço", "preco", "diária", "diaria", "tarifa"},
		answer:   "Compare a sua diária com imóveis semelhantes da região e ajuste para cima em feriados e fins de semana.",
	},
	{
		keywords: []string{"avaliação", "avaliacao", "review"},
		answer:   "Responda todas as avaliações em até 48 horas, agradecendo os elogios e tratando as críticas com objetividade.",
	},
}

// CannedResponder answers from a fixed topic table and echoes anything else.
type CannedResponder struct {
	topics []topic
}

// NewCannedResponder creates a responder with the built-in topics.
func NewCannedResponder() *CannedResponder {
	return &CannedResponder{topics: defaultTopics}
}

var _ Responder = (*CannedResponder)(nil)

// Reply answers the last USER message of history.
func (r *CannedResponder) Reply(ctx context.Context, history []domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var lastUserMessage string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			lastUserMessage = history[i].Content
			break
		}
	}

	if strings.TrimSpace(lastUserMessage) == "" {
		return "Olá! Como posso ajudar com o seu imóvel hoje?", nil
	}

	lower := strings.ToLower(lastUserMessage)
	for _, t := range r.topics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t.answer, nil
			}
		}
	}

	return fmt.Sprintf("Recebi sua pergunta: %q. Ainda não tenho uma resposta específica para isso.", Truncate(lastUserMessage, 100)), nil
}

// Truncate shortens s to maxRunes runes, appending "..." when cut.
func Truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes]) + "..."
}
