// Package controller implements the view-sync controllers: each one owns a
// private slice of client state and refreshes it against the remote resource
// service. There is no shared mutable state between controllers.
package controller

import (
	"context"

	"chatmail/internal/models"
)

// ResourceClient is the remote edge both controllers talk to. *api.Client
// satisfies it; tests substitute a mock.
type ResourceClient interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, intent models.NewUser) (*models.User, error)
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	CreateConversation(ctx context.Context, intent models.NewConversation) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	SendMessage(ctx context.Context, intent models.NewMessage) (*models.Message, error)
	ListMail(ctx context.Context, owner string, folder models.Folder) ([]models.MailItem, error)
	SendMail(ctx context.Context, intent models.NewMailItem) (*models.MailItem, error)
	PatchMail(ctx context.Context, id string, patch models.MailPatch) (*models.MailItem, error)
}

// FollowUp names a refresh a mutation asks for instead of chaining it
// implicitly. Callers decide when (and whether) to run it, which keeps
// batching and debouncing possible without hidden coupling.
type FollowUp int

const (
	FollowUpNone FollowUp = iota

	// FollowUpLoadConversations re-fetches the conversation list, picking up
	// updated last_message fields and server-side ordering.
	FollowUpLoadConversations

	// FollowUpLoadMessages re-fetches the active conversation's messages.
	FollowUpLoadMessages

	// FollowUpLoadItems re-fetches the current (owner, folder) mail listing.
	FollowUpLoadItems
)

func (f FollowUp) String() string {
	switch f {
	case FollowUpLoadConversations:
		return "load_conversations"
	case FollowUpLoadMessages:
		return "load_messages"
	case FollowUpLoadItems:
		return "load_items"
	}
	return "none"
}
