package devserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hostwise/assistant/internal/domain"
	"github.com/hostwise/assistant/internal/repository"
)

// GetUsage returns the caller's quota for the current month.
// GET /api/chat/usage
func (h *Handler) GetUsage(c echo.Context) error {
	quota, err := h.quota(c)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, quota)
}

// ListCreditPacks returns the purchasable packs.
// GET /api/chat/credits/packs
func (h *Handler) ListCreditPacks(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.CreditPacksResponse{Packs: h.opts.Packs})
}

// Checkout starts a checkout session for one pack.
// POST /api/chat/credits/checkout
func (h *Handler) Checkout(c echo.Context) error {
	var req domain.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	pack, ok := h.pack(req.PackIndex)
	if !ok {
		return errorJSON(c, http.StatusBadRequest, "unknown credit pack")
	}
	if !pack.Available {
		return errorJSON(c, http.StatusConflict, "credit pack is not available")
	}

	checkout := &repository.Checkout{
		SessionID: "cs_" + uuid.New().String()[:8],
		UserID:    userID(c),
		PackIndex: pack.Index,
		Credits:   pack.Credits,
		CreatedAt: h.opts.Now().UTC(),
	}
	if err := h.store.CreateCheckout(c.Request().Context(), checkout); err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	checkoutURL, err := h.checkoutURL(checkout.SessionID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, domain.CheckoutResponse{URL: checkoutURL})
}

// CompleteCheckout is the page the checkout redirect lands on. It grants the
// pack's credits once per session.
// GET /billing/checkout/complete?session=
func (h *Handler) CompleteCheckout(c echo.Context) error {
	sessionID := c.QueryParam("session")
	if sessionID == "" {
		return errorJSON(c, http.StatusBadRequest, "session is required")
	}

	checkout, err := h.store.CompleteCheckout(c.Request().Context(), sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "checkout session not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	h.logger.Info("checkout completed",
		zap.String("session_id", checkout.SessionID),
		zap.String("user_id", checkout.UserID),
		zap.Int("credits", checkout.Credits))

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  checkout.Status,
		"credits": checkout.Credits,
	})
}

func (h *Handler) quota(c echo.Context) (*domain.UsageQuota, error) {
	now := h.opts.Now().UTC()
	usage, err := h.store.GetUsage(c.Request().Context(), userID(c), billingPeriod(now))
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	quota := domain.UsageQuota{
		Used:         usage.Used,
		Limit:        h.opts.MonthlyLimit,
		BonusCredits: usage.BonusCredits,
		PeriodEnd:    periodEnd(now),
	}.Derive()
	return &quota, nil
}

func (h *Handler) pack(index int) (domain.CreditPack, bool) {
	for _, p := range h.opts.Packs {
		if p.Index == index {
			return p, true
		}
	}
	return domain.CreditPack{}, false
}

func (h *Handler) checkoutURL(sessionID string) (string, error) {
	u, err := url.Parse(h.opts.CheckoutURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse checkout url: %w", err)
	}
	q := u.Query()
	q.Set("session", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// billingPeriod is the calendar month of t in UTC, e.g. "2026-03".
func billingPeriod(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// periodEnd is the first instant of the month after t, in UTC.
func periodEnd(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
