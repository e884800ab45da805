package controller

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"chatmail/internal/models"
)

func TestNewChatController(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)

	assert.NotNil(t, c)
	assert.Empty(t, c.CurrentUserID())
	assert.Empty(t, c.ActiveConversationID())
	assert.Empty(t, c.Users())
	assert.Empty(t, c.Messages())
}

func TestChatController_LoadUsers_ReplacesWholesale(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	first := []models.User{{ID: "u1", Name: "Ann", Email: "ann@x"}}
	second := []models.User{{ID: "u2", Name: "Bob", Email: "bob@x"}}
	client.On("ListUsers", ctx).Return(first, nil).Once()
	client.On("ListUsers", ctx).Return(second, nil).Once()

	assert.NoError(t, c.LoadUsers(ctx))
	assert.Equal(t, first, c.Users())

	assert.NoError(t, c.LoadUsers(ctx))
	assert.Equal(t, second, c.Users())
	client.AssertExpectations(t)
}

func TestChatController_LoadUsers_FailureKeepsPreviousUsers(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	users := []models.User{{ID: "u1", Name: "Ann", Email: "ann@x"}}
	client.On("ListUsers", ctx).Return(users, nil).Once()
	client.On("ListUsers", ctx).Return(nil, errors.New("connection refused")).Once()

	assert.NoError(t, c.LoadUsers(ctx))

	err := c.LoadUsers(ctx)
	assert.Error(t, err)
	assert.Equal(t, users, c.Users(), "stale-but-present: failed refresh keeps the old list")
	client.AssertExpectations(t)
}

func TestChatController_SelectUser_InvalidatesSelection(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	client.On("ListMessages", ctx, "c1").Return([]models.Message{{ID: "m1"}}, nil).Once()
	c.SelectConversation("c1")
	assert.NoError(t, c.LoadMessages(ctx))
	assert.Len(t, c.Messages(), 1)

	follow := c.SelectUser("u2")

	assert.Equal(t, FollowUpLoadConversations, follow)
	assert.Equal(t, "u2", c.CurrentUserID())
	assert.Empty(t, c.ActiveConversationID(), "active conversation cleared before any fetch")
	assert.Empty(t, c.Messages(), "messages cleared before any fetch")
	client.AssertExpectations(t)
}

func TestChatController_LoadConversations_NoCurrentUser(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)

	assert.NoError(t, c.LoadConversations(context.Background()))
	client.AssertNotCalled(t, "ListConversations")
}

func TestChatController_LoadConversations_FiltersByCurrentUser(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	convs := []models.Conversation{{ID: "c1", Title: "Ann & Bob"}}
	client.On("ListConversations", ctx, "u1").Return(convs, nil).Once()

	c.SelectUser("u1")
	assert.NoError(t, c.LoadConversations(ctx))
	assert.Equal(t, convs, c.Conversations())
	client.AssertExpectations(t)
}

func TestChatController_CreateUser_ValidationErrors(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	tests := []struct {
		name      string
		userName  string
		userEmail string
	}{
		{"empty_name", "", "ann@x"},
		{"empty_email", "Ann", ""},
		{"both_empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			follow, err := c.CreateUser(ctx, tt.userName, tt.userEmail)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "cannot be empty")
			assert.Equal(t, FollowUpNone, follow)
		})
	}
	client.AssertNotCalled(t, "CreateUser")
}

func TestChatController_CreateUser_AppendsAndSelects(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	created := &models.User{ID: "u1", Name: "Ann", Email: "ann@x"}
	client.On("CreateUser", ctx, models.NewUser{Name: "Ann", Email: "ann@x"}).Return(created, nil).Once()
	client.On("ListConversations", ctx, "u1").Return([]models.Conversation{}, nil).Once()

	follow, err := c.CreateUser(ctx, "Ann", "ann@x")
	assert.NoError(t, err)
	assert.Equal(t, FollowUpLoadConversations, follow)
	assert.Equal(t, "u1", c.CurrentUserID())
	assert.Equal(t, []models.User{*created}, c.Users())

	// The follow-up fetch runs against the newly selected user's id.
	assert.NoError(t, c.Run(ctx, follow))
	client.AssertExpectations(t)
}

func TestChatController_CreateUser_FailureLeavesStateUnchanged(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	client.On("CreateUser", ctx, models.NewUser{Name: "Ann", Email: "ann@x"}).
		Return(nil, errors.New("500")).Once()

	follow, err := c.CreateUser(ctx, "Ann", "ann@x")
	assert.Error(t, err)
	assert.Equal(t, FollowUpNone, follow)
	assert.Empty(t, c.Users())
	assert.Empty(t, c.CurrentUserID())
	client.AssertExpectations(t)
}

func TestChatController_StartConversation_ValidationErrors(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	_, err := c.StartConversation(ctx, "u2")
	assert.Error(t, err, "no current user")

	c.SelectUser("u1")
	_, err = c.StartConversation(ctx, "")
	assert.Error(t, err, "no other user")
	client.AssertNotCalled(t, "CreateConversation")
}

func TestChatController_StartConversation_PrependsAndActivates(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	existing := []models.Conversation{{ID: "c1", Title: "Ann & Bob"}}
	client.On("ListConversations", ctx, "u1").Return(existing, nil).Once()
	c.SelectUser("u1")
	assert.NoError(t, c.LoadConversations(ctx))

	created := &models.Conversation{ID: "c2", Title: "Ann & Cid", ParticipantIDs: []string{"u1", "u3"}}
	client.On("CreateConversation", ctx, models.NewConversation{ParticipantIDs: []string{"u1", "u3"}}).
		Return(created, nil).Once()

	follow, err := c.StartConversation(ctx, "u3")
	assert.NoError(t, err)
	assert.Equal(t, FollowUpLoadMessages, follow)
	assert.Equal(t, "c2", c.ActiveConversationID())

	convs := c.Conversations()
	assert.Len(t, convs, 2)
	assert.Equal(t, "c2", convs[0].ID, "created conversation is prepended")
	client.AssertExpectations(t)
}

func TestChatController_SelectConversation_ReplacesMessagesAtomically(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	client.On("ListMessages", ctx, "c1").Return([]models.Message{{ID: "m1"}}, nil).Once()
	c.SelectConversation("c1")
	assert.NoError(t, c.LoadMessages(ctx))
	assert.Len(t, c.Messages(), 1)

	follow := c.SelectConversation("c2")
	assert.Equal(t, FollowUpLoadMessages, follow)
	assert.Equal(t, "c2", c.ActiveConversationID())
	assert.Empty(t, c.Messages(), "old conversation's messages never bleed into the new one")
	client.AssertExpectations(t)
}

func TestChatController_LoadMessages_NoActiveConversation(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)

	assert.NoError(t, c.LoadMessages(context.Background()))
	client.AssertNotCalled(t, "ListMessages")
}

func TestChatController_SendMessage_ValidationErrors(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	_, err := c.SendMessage(ctx)
	assert.Error(t, err, "empty compose text")

	c.SetComposeText("hi")
	_, err = c.SendMessage(ctx)
	assert.Error(t, err, "no active conversation")
	client.AssertNotCalled(t, "SendMessage")
}

func TestChatController_SendMessage_AppendsAndClearsCompose(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	client.On("ListMessages", ctx, "c1").Return([]models.Message{{ID: "m1"}}, nil).Once()
	c.SelectUser("u1")
	c.SelectConversation("c1")
	assert.NoError(t, c.LoadMessages(ctx))

	sent := &models.Message{ID: "m2", ConversationID: "c1", SenderID: "u1", Content: "hello"}
	client.On("SendMessage", ctx, models.NewMessage{ConversationID: "c1", SenderID: "u1", Content: "hello"}).
		Return(sent, nil).Once()

	c.SetComposeText("hello")
	follow, err := c.SendMessage(ctx)
	assert.NoError(t, err)
	assert.Equal(t, FollowUpLoadConversations, follow)
	assert.Len(t, c.Messages(), 2, "exactly one message appended, no refetch")
	assert.Equal(t, "m2", c.Messages()[1].ID)
	assert.Empty(t, c.ComposeText())
	client.AssertExpectations(t)
}

func TestChatController_SendMessage_FailureLeavesStateUnchanged(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	client.On("ListMessages", ctx, "c1").Return([]models.Message{{ID: "m1"}}, nil).Once()
	c.SelectUser("u1")
	c.SelectConversation("c1")
	assert.NoError(t, c.LoadMessages(ctx))

	client.On("SendMessage", ctx, models.NewMessage{ConversationID: "c1", SenderID: "u1", Content: "hello"}).
		Return(nil, errors.New("503")).Once()

	c.SetComposeText("hello")
	follow, err := c.SendMessage(ctx)
	assert.Error(t, err)
	assert.Equal(t, FollowUpNone, follow)
	assert.Len(t, c.Messages(), 1)
	assert.Equal(t, "hello", c.ComposeText(), "input survives for a manual retry")
	client.AssertExpectations(t)
}

func TestChatController_OtherUsers_NeverContainsCurrentUser(t *testing.T) {
	client := &MockResourceClient{}
	c := NewChatController(client)
	ctx := context.Background()

	users := []models.User{
		{ID: "u1", Name: "Ann"},
		{ID: "u2", Name: "Bob"},
		{ID: "u3", Name: "Cid"},
	}
	client.On("ListUsers", ctx).Return(users, nil).Once()
	assert.NoError(t, c.LoadUsers(ctx))

	assert.Len(t, c.OtherUsers(), 3, "no current user selected")

	for _, u := range users {
		c.SelectUser(u.ID)
		others := c.OtherUsers()
		assert.Len(t, others, 2)
		for _, o := range others {
			assert.NotEqual(t, u.ID, o.ID)
		}
	}
	client.AssertExpectations(t)
}

// blockingClient lets a test hold a ListMessages response in flight while the
// selection moves on.
type blockingClient struct {
	MockResourceClient
	mu      sync.Mutex
	release map[string]chan struct{}
	results map[string][]models.Message
}

func newBlockingClient() *blockingClient {
	return &blockingClient{
		release: make(map[string]chan struct{}),
		results: make(map[string][]models.Message),
	}
}

func (b *blockingClient) expectMessages(conversationID string, msgs []models.Message) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{})
	b.release[conversationID] = ch
	b.results[conversationID] = msgs
	return ch
}

func (b *blockingClient) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	b.mu.Lock()
	ch := b.release[conversationID]
	msgs := b.results[conversationID]
	b.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return msgs, nil
}

func TestChatController_StaleMessageResponseIsDiscarded(t *testing.T) {
	client := newBlockingClient()
	c := NewChatController(client)
	ctx := context.Background()

	msgsA := []models.Message{{ID: "a1", ConversationID: "A"}}
	msgsB := []models.Message{{ID: "b1", ConversationID: "B"}}
	releaseA := client.expectMessages("A", msgsA)
	releaseB := client.expectMessages("B", msgsB)

	c.SelectConversation("A")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.LoadMessages(ctx)
	}()

	// B is selected and its fetch completes while A's response is in flight.
	c.SelectConversation("B")
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = c.LoadMessages(ctx)
	}()
	close(releaseB)

	// A's response arrives last; its token is stale so it must be dropped.
	close(releaseA)
	wg.Wait()

	assert.Equal(t, "B", c.ActiveConversationID())
	assert.Equal(t, msgsB, c.Messages(), "late response for A must not overwrite B's messages")
}

func TestChatController_Run_UnknownFollowUp(t *testing.T) {
	c := NewChatController(&MockResourceClient{})
	err := c.Run(context.Background(), FollowUpLoadItems)
	assert.Error(t, err)
}
