// Package api implements the typed client for the remote resource service.
// All request and response bodies are field-named JSON records; anything the
// decoder cannot map onto the typed models is rejected here rather than
// propagated into view state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"chatmail/internal/models"
)

// Error is a non-success status returned by the remote service.
type Error struct {
	Status int
	Op     string
	Body   string
}

func (e *Error) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: remote returned %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: remote returned %d", e.Op, e.Status)
}

// Client wraps the remote resource service and provides typed methods for the
// operations the controllers depend on. It performs no retries and enforces
// no timeout of its own; liveness is governed by the caller's context.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *log.Logger
}

// NewClient creates a client against the given base URL, e.g.
// "http://localhost:8000".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   http.DefaultClient,
	}
}

// SetHTTPClient overrides the underlying HTTP client (used in tests).
func (c *Client) SetHTTPClient(h *http.Client) {
	if h != nil {
		c.httpc = h
	}
}

// SetLogger sets the logger for debug output
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// ListUsers fetches all users.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &users, "list users"); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser posts a user creation intent and returns the created user.
func (c *Client) CreateUser(ctx context.Context, intent models.NewUser) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/users", intent, &user, "create user"); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListConversations fetches the conversations the given user participates in,
// in server-defined order.
func (c *Client) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	path := "/api/conversations?user_id=" + url.QueryEscape(userID)
	var convs []models.Conversation
	if err := c.do(ctx, http.MethodGet, path, nil, &convs, "list conversations"); err != nil {
		return nil, err
	}
	return convs, nil
}

// CreateConversation posts a conversation between the given participants.
func (c *Client) CreateConversation(ctx context.Context, intent models.NewConversation) (*models.Conversation, error) {
	var conv models.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", intent, &conv, "create conversation"); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListMessages fetches all messages of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	var msgs []models.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs, "list messages"); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a message and returns the canonical record the server
// created, including its id and timestamp.
func (c *Client) SendMessage(ctx context.Context, intent models.NewMessage) (*models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", intent, &msg, "send message"); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMail fetches the mail items of one (owner, folder) pair.
func (c *Client) ListMail(ctx context.Context, owner string, folder models.Folder) ([]models.MailItem, error) {
	path := fmt.Sprintf("/api/emails?owner=%s&folder=%s", url.QueryEscape(owner), url.QueryEscape(folder.String()))
	var items []models.MailItem
	if err := c.do(ctx, http.MethodGet, path, nil, &items, "list mail"); err != nil {
		return nil, err
	}
	return items, nil
}

// SendMail posts a composed mail item.
func (c *Client) SendMail(ctx context.Context, intent models.NewMailItem) (*models.MailItem, error) {
	var item models.MailItem
	if err := c.do(ctx, http.MethodPost, "/api/emails", intent, &item, "send mail"); err != nil {
		return nil, err
	}
	return &item, nil
}

// PatchMail sends a partial update for one item and returns the updated
// record. Callers that only refetch afterwards may ignore the result.
func (c *Client) PatchMail(ctx context.Context, id string, patch models.MailPatch) (*models.MailItem, error) {
	path := "/api/emails/" + url.PathEscape(id)
	var item models.MailItem
	if err := c.do(ctx, http.MethodPatch, path, patch, &item, "patch mail"); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, op string) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if c.logger != nil {
			c.logger.Printf("%s: status %d", op, resp.StatusCode)
		}
		return &Error{Status: resp.StatusCode, Op: op, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
