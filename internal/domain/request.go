package domain

// SendRequest is the body of a send-message call. An empty ConversationID
// asks the server to create a conversation.
type SendRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

// SendResponse is the success body of a send-message call.
type SendResponse struct {
	ConversationID string     `json:"conversationId"`
	Message        Message    `json:"message"`
	Usage          UsageQuota `json:"usage"`
}

// ConversationsResponse wraps the conversation list.
type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

// MessagesResponse wraps the message list of one conversation.
type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

// CreditPacksResponse wraps the pack list.
type CreditPacksResponse struct {
	Packs []CreditPack `json:"packs"`
}

// CheckoutRequest asks for a checkout handoff for one pack.
type CheckoutRequest struct {
	PackIndex int `json:"packIndex"`
}

// CheckoutResponse carries the external checkout URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// ErrorResponse represents an error body returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
