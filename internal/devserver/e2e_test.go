package devserver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwise/assistant/internal/adapter/api"
	"github.com/hostwise/assistant/internal/assistant"
	"github.com/hostwise/assistant/internal/auth"
	"github.com/hostwise/assistant/internal/devserver"
	"github.com/hostwise/assistant/internal/policy"
	"github.com/hostwise/assistant/internal/purchase"
	"github.com/hostwise/assistant/internal/session"
	"github.com/hostwise/assistant/tests/helpers"
)

// startDevServer runs the full echo stack on an httptest server.
func startDevServer(t *testing.T, monthlyLimit int) (*httptest.Server, string) {
	t.Helper()

	var e *echo.Echo
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	tokens := auth.NewJWTManager("e2e-secret", time.Hour)

	h := devserver.NewHandler(helpers.NewTestSQLiteStore(t), engine, tokens, assistant.NewCannedResponder(), devserver.Options{
		MonthlyLimit: monthlyLimit,
		CheckoutURL:  srv.URL + "/billing/checkout/complete",
	}, nil)
	e = devserver.NewEcho(h)

	token, err := tokens.GenerateToken("host-1")
	require.NoError(t, err)
	return srv, token
}

func TestSessionAgainstDevServer(t *testing.T) {
	srv, token := startDevServer(t, 1)
	ctx := context.Background()

	client := api.NewClient(srv.URL+"/api", auth.StaticToken(token), 5*time.Second)
	ctrl := session.NewController(client)
	ctrl.Start(ctx)

	state := ctrl.State()
	require.NotNil(t, state.Usage)
	assert.Equal(t, 1, state.Usage.TotalAvailable)
	assert.Empty(t, state.Conversations)

	assert.Equal(t, session.SendReplied, ctrl.SendMessage(ctx, "Como faço o check-in?"))
	state = ctrl.State()
	assert.False(t, state.IsDraft())
	require.Len(t, state.Messages, 2)
	require.Len(t, state.Conversations, 1)
	assert.Equal(t, state.ConversationID, state.Conversations[0].ID)
	assert.True(t, state.QuotaExhausted())

	// The server has the final word: the send goes out and is rejected.
	assert.Equal(t, session.SendQuotaExceeded, ctrl.SendMessage(ctx, "Mais uma pergunta"))
	state = ctrl.State()
	assert.Len(t, state.Messages, 2)
	assert.True(t, state.ShowPurchase)

	var visited []string
	flow := purchase.NewFlow(client, purchase.NavigatorFunc(func(url string) error {
		visited = append(visited, url)
		resp, err := http.Get(url)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}), nil)

	packs, err := flow.LoadPacks(ctx)
	require.NoError(t, err)
	require.Len(t, packs, 3)
	require.NoError(t, flow.Purchase(ctx, 0))
	require.Len(t, visited, 1)

	ctrl.DismissPurchase()
	ctrl.RefreshUsage(ctx)
	state = ctrl.State()
	assert.Equal(t, 10, state.Usage.BonusCredits)
	assert.False(t, state.QuotaExhausted())

	assert.Equal(t, session.SendReplied, ctrl.SendMessage(ctx, "E a limpeza?"))
	state = ctrl.State()
	assert.Len(t, state.Messages, 4)
	assert.Equal(t, 9, state.Usage.BonusCredits)
}

func TestSessionLoadAndDeleteAgainstDevServer(t *testing.T) {
	srv, token := startDevServer(t, 10)
	ctx := context.Background()

	client := api.NewClient(srv.URL+"/api", auth.StaticToken(token), 5*time.Second)
	ctrl := session.NewController(client)

	require.Equal(t, session.SendReplied, ctrl.SendMessage(ctx, "primeira"))
	first := ctrl.State().ConversationID

	ctrl.StartNewConversation()
	require.Equal(t, session.SendReplied, ctrl.SendMessage(ctx, "segunda"))
	second := ctrl.State().ConversationID
	require.NotEqual(t, first, second)
	require.Len(t, ctrl.State().Conversations, 2)

	ctrl.LoadConversation(ctx, first)
	state := ctrl.State()
	assert.Equal(t, first, state.ConversationID)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "primeira", state.Messages[0].Content)

	ctrl.DeleteConversation(ctx, first)
	state = ctrl.State()
	assert.True(t, state.IsDraft())
	assert.Empty(t, state.Messages)
	require.Len(t, state.Conversations, 1)
	assert.Equal(t, second, state.Conversations[0].ID)

	ctrl.RefreshConversations(ctx)
	assert.Len(t, ctrl.State().Conversations, 1)
}

func TestClientUnauthorized(t *testing.T) {
	srv, _ := startDevServer(t, 10)
	client := api.NewClient(srv.URL+"/api", auth.StaticToken("bogus"), 5*time.Second)

	_, err := client.GetUsage(context.Background())
	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}
