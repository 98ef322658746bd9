package assistant

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwise/assistant/internal/domain"
)

func userMsg(content string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: content}
}

func TestCannedResponderTopics(t *testing.T) {
	r := NewCannedResponder()

	reply, err := r.Reply(context.Background(), []domain.Message{userMsg("Como organizo o Check-in?")})
	require.NoError(t, err)
	assert.Contains(t, reply, "check-in")

	reply, err = r.Reply(context.Background(), []domain.Message{userMsg("qual preço cobrar?")})
	require.NoError(t, err)
	assert.Contains(t, reply, "diária")
}

func TestCannedResponderUsesLastUserMessage(t *testing.T) {
	r := NewCannedResponder()
	history := []domain.Message{
		userMsg("limpeza"),
		{Role: domain.RoleAssistant, Content: "resposta"},
		userMsg("algo diferente"),
	}

	reply, err := r.Reply(context.Background(), history)
	require.NoError(t, err)
	assert.Contains(t, reply, `"algo diferente"`)
}

func TestCannedResponderEmptyHistory(t *testing.T) {
	reply, err := NewCannedResponder().Reply(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

func TestCannedResponderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCannedResponder().Reply(ctx, []domain.Message{userMsg("oi")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab...", Truncate("abc", 2))
	assert.Equal(t, "çã...", Truncate("çãé", 2))

	long := strings.Repeat("x", 150)
	assert.Equal(t, 103, len(Truncate(long, 100)))
}
