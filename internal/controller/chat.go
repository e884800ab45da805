package controller

import (
	"context"
	"fmt"
	"log"
	"sync"

	"chatmail/internal/models"
)

// ChatController owns the messaging view state: users, the current user, the
// conversation list, the active conversation and its messages, and the
// compose text. All fetches replace their slice wholesale and carry a request
// token so a response that was superseded while in flight is discarded
// instead of clobbering newer state.
type ChatController struct {
	client ResourceClient
	logger *log.Logger

	mu            sync.Mutex
	users         []models.User
	currentUserID string
	conversations []models.Conversation
	activeConvID  string
	messages      []models.Message
	composeText   string

	usersSeq uint64
	convsSeq uint64
	msgsSeq  uint64
}

// NewChatController creates a messaging controller against the given client.
func NewChatController(client ResourceClient) *ChatController {
	return &ChatController{client: client}
}

// SetLogger sets the logger for debug output
func (c *ChatController) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// Users returns the current user list.
func (c *ChatController) Users() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.User(nil), c.users...)
}

// CurrentUserID returns the selected user id, or "" when none is selected.
func (c *ChatController) CurrentUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentUserID
}

// Conversations returns the conversation list in server order.
func (c *ChatController) Conversations() []models.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Conversation(nil), c.conversations...)
}

// ActiveConversationID returns the active conversation id, or "".
func (c *ChatController) ActiveConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeConvID
}

// Messages returns the messages of the active conversation.
func (c *ChatController) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.messages...)
}

// ComposeText returns the pending compose text.
func (c *ChatController) ComposeText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composeText
}

// SetComposeText stores the pending compose text.
func (c *ChatController) SetComposeText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.composeText = text
}

// OtherUsers projects the user list without the current user. It is
// recomputed on every call and never stored.
func (c *ChatController) OtherUsers() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.User, 0, len(c.users))
	for _, u := range c.users {
		if u.ID != c.currentUserID {
			out = append(out, u)
		}
	}
	return out
}

// LoadUsers fetches all users and replaces the list wholesale. On failure the
// previously loaded users stay displayed and the error is returned to the
// caller; there is no automatic retry.
func (c *ChatController) LoadUsers(ctx context.Context) error {
	c.mu.Lock()
	c.usersSeq++
	token := c.usersSeq
	c.mu.Unlock()

	users, err := c.client.ListUsers(ctx)
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("load users: %v", err)
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.usersSeq {
		return nil
	}
	c.users = users
	return nil
}

// SelectUser makes id the current user. The active conversation and message
// list are invalidated before any fetch: a conversation of the previous user
// must never survive a user switch.
func (c *ChatController) SelectUser(id string) FollowUp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentUserID = id
	c.activeConvID = ""
	c.messages = nil
	c.msgsSeq++
	c.convsSeq++
	return FollowUpLoadConversations
}

// LoadConversations fetches the current user's conversations in server order
// and replaces the list wholesale. No-op without a current user.
func (c *ChatController) LoadConversations(ctx context.Context) error {
	c.mu.Lock()
	userID := c.currentUserID
	if userID == "" {
		c.mu.Unlock()
		return nil
	}
	c.convsSeq++
	token := c.convsSeq
	c.mu.Unlock()

	convs, err := c.client.ListConversations(ctx, userID)
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("load conversations: %v", err)
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.convsSeq || userID != c.currentUserID {
		return nil
	}
	c.conversations = convs
	return nil
}

// CreateUser posts a new user. On success the returned user is appended and
// becomes the current user; on failure nothing changes, so the caller's
// input survives for a retry.
func (c *ChatController) CreateUser(ctx context.Context, name, email string) (FollowUp, error) {
	if name == "" || email == "" {
		return FollowUpNone, fmt.Errorf("name and email cannot be empty")
	}

	user, err := c.client.CreateUser(ctx, models.NewUser{Name: name, Email: email})
	if err != nil {
		return FollowUpNone, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, *user)
	c.currentUserID = user.ID
	c.activeConvID = ""
	c.messages = nil
	c.msgsSeq++
	c.convsSeq++
	return FollowUpLoadConversations, nil
}

// StartConversation posts a conversation between the current user and
// otherUserID. On success it is prepended and becomes active.
func (c *ChatController) StartConversation(ctx context.Context, otherUserID string) (FollowUp, error) {
	c.mu.Lock()
	currentID := c.currentUserID
	c.mu.Unlock()

	if currentID == "" || otherUserID == "" {
		return FollowUpNone, fmt.Errorf("current user and other user cannot be empty")
	}

	conv, err := c.client.CreateConversation(ctx, models.NewConversation{
		ParticipantIDs: []string{currentID, otherUserID},
	})
	if err != nil {
		return FollowUpNone, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversations = append([]models.Conversation{*conv}, c.conversations...)
	c.activeConvID = conv.ID
	c.messages = nil
	c.msgsSeq++
	return FollowUpLoadMessages, nil
}

// SelectConversation makes id the active conversation and atomically replaces
// the message list with an empty one until the follow-up load completes.
func (c *ChatController) SelectConversation(id string) FollowUp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeConvID = id
	c.messages = nil
	c.msgsSeq++
	return FollowUpLoadMessages
}

// LoadMessages fetches the active conversation's messages. A response for a
// conversation that is no longer active, or that was superseded by a newer
// fetch, is dropped.
func (c *ChatController) LoadMessages(ctx context.Context) error {
	c.mu.Lock()
	convID := c.activeConvID
	if convID == "" {
		c.mu.Unlock()
		return nil
	}
	c.msgsSeq++
	token := c.msgsSeq
	c.mu.Unlock()

	msgs, err := c.client.ListMessages(ctx, convID)
	if err != nil {
		if c.logger != nil {
			c.logger.Printf("load messages: %v", err)
		}
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.msgsSeq || convID != c.activeConvID {
		return nil
	}
	c.messages = msgs
	return nil
}

// SendMessage posts the compose text to the active conversation. On success
// the canonical message the server returned is appended and the compose text
// cleared; the conversation list is left briefly stale until the returned
// follow-up runs. On failure all state is unchanged.
func (c *ChatController) SendMessage(ctx context.Context) (FollowUp, error) {
	c.mu.Lock()
	text := c.composeText
	convID := c.activeConvID
	senderID := c.currentUserID
	c.mu.Unlock()

	if text == "" || convID == "" {
		return FollowUpNone, fmt.Errorf("compose text and active conversation cannot be empty")
	}

	msg, err := c.client.SendMessage(ctx, models.NewMessage{
		ConversationID: convID,
		SenderID:       senderID,
		Content:        text,
	})
	if err != nil {
		return FollowUpNone, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if convID == c.activeConvID {
		c.messages = append(c.messages, *msg)
	}
	c.composeText = ""
	return FollowUpLoadConversations, nil
}

// Run executes a follow-up action returned by a mutation.
func (c *ChatController) Run(ctx context.Context, f FollowUp) error {
	switch f {
	case FollowUpLoadConversations:
		return c.LoadConversations(ctx)
	case FollowUpLoadMessages:
		return c.LoadMessages(ctx)
	case FollowUpNone:
		return nil
	}
	return fmt.Errorf("follow-up %s is not a messaging action", f)
}
