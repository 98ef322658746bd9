// Package api provides an HTTP client for the HostWise chat API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hostwise/assistant/internal/auth"
	"github.com/hostwise/assistant/internal/domain"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api returned status %d", e.StatusCode)
}

// Client is an HTTP client for the chat API.
type Client struct {
	baseURL    string
	tokens     auth.TokenSource
	httpClient *http.Client
}

// NewClient creates a new API client. baseURL includes the /api prefix.
func NewClient(baseURL string, tokens auth.TokenSource, timeout time.Duration) *Client {
	if tokens == nil {
		tokens = auth.StaticToken("")
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SendMessage calls POST /chat/messages. It never returns an error: every
// failure is classified into the returned SendResult.
func (c *Client) SendMessage(ctx context.Context, req domain.SendRequest) domain.SendResult {
	var resp domain.SendResponse
	err := c.do(ctx, http.MethodPost, "/chat/messages", req, &resp)
	if err == nil {
		return domain.SendSuccess{
			ConversationID: resp.ConversationID,
			Reply:          resp.Message,
			Usage:          resp.Usage,
		}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusForbidden {
			return domain.QuotaExceeded{}
		}
		return domain.SendFailure{Message: statusErr.Message, Err: err}
	}
	return domain.SendFailure{Err: err}
}

// ListConversations calls GET /chat/conversations.
func (c *Client) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var resp domain.ConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/chat/conversations", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return resp.Conversations, nil
}

// ListMessages calls GET /chat/conversations/:id/messages.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var resp domain.MessagesResponse
	path := fmt.Sprintf("/chat/conversations/%s/messages", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return resp.Messages, nil
}

// DeleteConversation calls DELETE /chat/conversations/:id.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/chat/conversations/%s", url.PathEscape(conversationID))
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// GetUsage calls GET /chat/usage.
func (c *Client) GetUsage(ctx context.Context) (*domain.UsageQuota, error) {
	var resp domain.UsageQuota
	if err := c.do(ctx, http.MethodGet, "/chat/usage", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return &resp, nil
}

// ListCreditPacks calls GET /chat/credits/packs.
func (c *Client) ListCreditPacks(ctx context.Context) ([]domain.CreditPack, error) {
	var resp domain.CreditPacksResponse
	if err := c.do(ctx, http.MethodGet, "/chat/credits/packs", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list credit packs: %w", err)
	}
	return resp.Packs, nil
}

// Checkout calls POST /chat/credits/checkout and returns the handoff URL.
func (c *Client) Checkout(ctx context.Context, packIndex int) (string, error) {
	var resp domain.CheckoutResponse
	req := domain.CheckoutRequest{PackIndex: packIndex}
	if err := c.do(ctx, http.MethodPost, "/chat/credits/checkout", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create checkout: %w", err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("checkout response has no url")
	}
	return resp.URL, nil
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth token: %w", err)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		var errResp domain.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &StatusError{StatusCode: resp.StatusCode}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
