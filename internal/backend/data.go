package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Conversation is one chat thread as the data API reports it.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one entry in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// DataClient talks to the conversation data API.
type DataClient struct {
	*Client
}

// NewDataClient creates a data API client rooted at baseURL.
func NewDataClient(baseURL string, auth Authorizer) *DataClient {
	return &DataClient{Client: NewClient(baseURL, auth)}
}

// ListConversations returns the caller's conversations, most recently
// updated first.
func (c *DataClient) ListConversations(ctx context.Context) ([]Conversation, error) {
	resp, err := c.do(ctx, http.MethodGet, "/conversations", nil, nil)
	if err != nil {
		return nil, err
	}

	var conversations []Conversation
	if err := decodeJSON(resp, &conversations, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// ListMessages returns the messages of one conversation.
func (c *DataClient) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var messages []Message
	if err := decodeJSON(resp, &messages, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

// SendMessage appends a message to a conversation and returns it as
// stored.
func (c *DataClient) SendMessage(ctx context.Context, conversationID, body string) (*Message, error) {
	path := "/conversations/" + url.PathEscape(conversationID) + "/messages"
	resp, err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"body": body})
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := decodeJSON(resp, &msg, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return &msg, nil
}
