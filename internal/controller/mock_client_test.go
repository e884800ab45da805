package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"

	"chatmail/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockResourceClient implements ResourceClient for testing
type MockResourceClient struct {
	mock.Mock
}

func (m *MockResourceClient) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockResourceClient) CreateUser(ctx context.Context, intent models.NewUser) (*models.User, error) {
	args := m.Called(ctx, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockResourceClient) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockResourceClient) CreateConversation(ctx context.Context, intent models.NewConversation) (*models.Conversation, error) {
	args := m.Called(ctx, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockResourceClient) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockResourceClient) SendMessage(ctx context.Context, intent models.NewMessage) (*models.Message, error) {
	args := m.Called(ctx, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockResourceClient) ListMail(ctx context.Context, owner string, folder models.Folder) ([]models.MailItem, error) {
	args := m.Called(ctx, owner, folder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MailItem), args.Error(1)
}

func (m *MockResourceClient) SendMail(ctx context.Context, intent models.NewMailItem) (*models.MailItem, error) {
	args := m.Called(ctx, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MailItem), args.Error(1)
}

func (m *MockResourceClient) PatchMail(ctx context.Context, id string, patch models.MailPatch) (*models.MailItem, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MailItem), args.Error(1)
}
