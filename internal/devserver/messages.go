package devserver

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/hostwise/assistant/internal/domain"
	"github.com/hostwise/assistant/internal/policy"
	"github.com/hostwise/assistant/internal/repository"
)

const (
	titleMaxRunes   = 60
	previewMaxRunes = 120

	quotaExceededMessage = "Você atingiu o limite de mensagens. Compre créditos para continuar."
)

// SendMessage generates the reply, then charges the message and stores the
// exchange in one transaction. A failed send leaves nothing behind.
// POST /api/chat/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req domain.SendRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, http.StatusBadRequest, "message is required")
	}

	ctx := c.Request().Context()
	user := userID(c)
	now := h.opts.Now().UTC()
	period := billingPeriod(now)

	usage, err := h.store.GetUsage(ctx, user, period)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	allowed, err := h.policy.Allowed(ctx, policy.QuotaInput{
		UserID:       user,
		Used:         usage.Used,
		Limit:        h.opts.MonthlyLimit,
		BonusCredits: usage.BonusCredits,
	})
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	if !allowed {
		return h.rejectQuota(c, user)
	}

	ex := &repository.Exchange{
		UserID:         user,
		Period:         period,
		MonthlyLimit:   h.opts.MonthlyLimit,
		ConversationID: req.ConversationID,
		UserMessage: domain.Message{
			ID:        uuid.New().String(),
			Role:      domain.RoleUser,
			Content:   req.Message,
			CreatedAt: now,
		},
	}

	var history []domain.Message
	if req.ConversationID == "" {
		title := clip(strings.TrimSpace(req.Message), titleMaxRunes)
		ex.NewConversation = &domain.Conversation{ID: uuid.New().String(), Title: &title, UpdatedAt: now}
		ex.ConversationID = ex.NewConversation.ID
	} else {
		if _, err := h.store.GetConversation(ctx, user, req.ConversationID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return errorJSON(c, http.StatusNotFound, "conversation not found")
			}
			return errorJSON(c, http.StatusInternalServerError, err.Error())
		}
		history, err = h.store.ListMessages(ctx, req.ConversationID)
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, err.Error())
		}
	}

	content, err := h.responder.Reply(ctx, append(history, ex.UserMessage))
	if err != nil {
		h.logger.Warn("failed to generate reply", zap.String("user_id", user), zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to generate reply")
	}
	ex.Reply = domain.Message{
		ID:        uuid.New().String(),
		Role:      domain.RoleAssistant,
		Content:   content,
		CreatedAt: h.opts.Now().UTC(),
	}
	ex.Preview = clip(content, previewMaxRunes)

	err = h.store.SaveExchange(ctx, ex)
	switch {
	case errors.Is(err, repository.ErrQuotaExhausted):
		return h.rejectQuota(c, user)
	case errors.Is(err, repository.ErrNotFound):
		return errorJSON(c, http.StatusNotFound, "conversation not found")
	case err != nil:
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	quota, err := h.quota(c)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, domain.SendResponse{
		ConversationID: ex.ConversationID,
		Message:        ex.Reply,
		Usage:          *quota,
	})
}

func (h *Handler) rejectQuota(c echo.Context, user string) error {
	h.logger.Info("send rejected: quota exhausted", zap.String("user_id", user))
	return errorJSON(c, http.StatusForbidden, quotaExceededMessage)
}

// ListConversations lists the caller's conversations.
// GET /api/chat/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	conversations, err := h.store.ListConversations(c.Request().Context(), userID(c))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, domain.ConversationsResponse{Conversations: conversations})
}

// ListMessages lists the messages of one conversation.
// GET /api/chat/conversations/:id/messages
func (h *Handler) ListMessages(c echo.Context) error {
	ctx := c.Request().Context()
	conversationID := c.Param("id")

	if _, err := h.store.GetConversation(ctx, userID(c), conversationID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorJSON(c, http.StatusNotFound, "conversation not found")
		}
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	messages, err := h.store.ListMessages(ctx, conversationID)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, domain.MessagesResponse{Messages: messages})
}

// DeleteConversation deletes a conversation.
// DELETE /api/chat/conversations/:id
func (h *Handler) DeleteConversation(c echo.Context) error {
	err := h.store.DeleteConversation(c.Request().Context(), userID(c), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "conversation not found")
	}
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// clip keeps the first maxRunes runes of s.
func clip(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
