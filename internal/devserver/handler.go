// Package devserver is a local stand-in for the HostWise chat API.
package devserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/hostwise/assistant/internal/assistant"
	"github.com/hostwise/assistant/internal/auth"
	"github.com/hostwise/assistant/internal/domain"
	"github.com/hostwise/assistant/internal/log"
	"github.com/hostwise/assistant/internal/policy"
	"github.com/hostwise/assistant/internal/repository"
)

// DefaultPacks are the credit packs offered by the dev server.
var DefaultPacks = []domain.CreditPack{
	{Index: 0, Credits: 10, PriceInCents: 990, Label: "10 mensagens", Available: true},
	{Index: 1, Credits: 50, PriceInCents: 3990, Label: "50 mensagens", Available: true},
	{Index: 2, Credits: 100, PriceInCents: 6990, Label: "100 mensagens", Available: true},
}

// Options tunes the handler.
type Options struct {
	MonthlyLimit int
	// CheckoutURL is the page checkout sessions redirect to; the session id
	// is appended as the "session" query parameter.
	CheckoutURL string
	Packs       []domain.CreditPack
	Now         func() time.Time
}

// Handler handles HTTP requests.
type Handler struct {
	store     repository.Store
	policy    *policy.Engine
	tokens    *auth.JWTManager
	responder assistant.Responder
	opts      Options
	logger    *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(store repository.Store, engine *policy.Engine, tokens *auth.JWTManager, responder assistant.Responder, opts Options, logger *zap.Logger) *Handler {
	if opts.Packs == nil {
		opts.Packs = DefaultPacks
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		store:     store,
		policy:    engine,
		tokens:    tokens,
		responder: responder,
		opts:      opts,
		logger:    log.OrNop(logger),
	}
}

// RegisterRoutes registers the chat API under /api and the checkout
// completion page.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/chat", h.RequireUser)
	api.POST("/messages", h.SendMessage)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:id/messages", h.ListMessages)
	api.DELETE("/conversations/:id", h.DeleteConversation)
	api.GET("/usage", h.GetUsage)
	api.GET("/credits/packs", h.ListCreditPacks)
	api.POST("/credits/checkout", h.Checkout)

	e.GET("/billing/checkout/complete", h.CompleteCheckout)
	e.GET("/health", h.Health)
}

// NewEcho builds an echo server with the standard middleware and h's routes.
func NewEcho(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)
	return e
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, domain.ErrorResponse{Error: msg})
}
