package controller

import (
	"context"
	"fmt"
	"log"
	"sync"

	"chatmail/internal/models"
)

// MailCompose holds the mailbox compose fields. Sender survives a successful
// send so a repeat sender does not re-type it.
type MailCompose struct {
	Sender  string
	To      string
	Subject string
	Body    string
}

// MailboxController owns the mailbox view state: the owner identity, the
// selected folder, and the items of exactly that (owner, folder) pair. The
// server is the sole source of truth for read flags and folder membership,
// so every mutation asks for a full refetch instead of merging locally.
type MailboxController struct {
	client ResourceClient
	logger *log.Logger

	mu      sync.Mutex
	owner   string
	folder  models.Folder
	items   []models.MailItem
	compose MailCompose

	itemsSeq uint64
}

// NewMailboxController creates a mailbox controller against the given client.
// The folder starts at inbox.
func NewMailboxController(client ResourceClient) *MailboxController {
	return &MailboxController{client: client, folder: models.FolderInbox}
}

// SetLogger sets the logger for debug output
func (m *MailboxController) SetLogger(logger *log.Logger) {
	m.logger = logger
}

// Owner returns the mailbox owner identity, or "" when unset.
func (m *MailboxController) Owner() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner
}

// Folder returns the selected folder.
func (m *MailboxController) Folder() models.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.folder
}

// Items returns the items of the current (owner, folder) pair.
func (m *MailboxController) Items() []models.MailItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.MailItem(nil), m.items...)
}

// Compose returns the pending compose fields.
func (m *MailboxController) Compose() MailCompose {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compose
}

// SetCompose stores the pending compose fields.
func (m *MailboxController) SetCompose(c MailCompose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compose = c
}

// SetOwner changes the mailbox owner. The item list is invalidated until the
// follow-up refetch completes; while the owner is empty no fetch is issued.
func (m *MailboxController) SetOwner(owner string) FollowUp {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner = owner
	m.items = nil
	m.itemsSeq++
	if owner == "" {
		return FollowUpNone
	}
	return FollowUpLoadItems
}

// SetFolder changes the selected folder. Only the four known folders are
// accepted. The item list is invalidated until refetched; with an empty owner
// the folder still changes but no fetch is requested.
func (m *MailboxController) SetFolder(folder models.Folder) (FollowUp, error) {
	if !folder.Valid() {
		return FollowUpNone, fmt.Errorf("unknown folder %q", folder)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.folder = folder
	m.items = nil
	m.itemsSeq++
	if m.owner == "" {
		return FollowUpNone, nil
	}
	return FollowUpLoadItems, nil
}

// LoadItems fetches the items of the current (owner, folder) pair and
// replaces the list wholesale. No-op while the owner is empty. A response
// whose (owner, folder) or token is no longer current is dropped.
func (m *MailboxController) LoadItems(ctx context.Context) error {
	m.mu.Lock()
	owner := m.owner
	folder := m.folder
	if owner == "" {
		m.mu.Unlock()
		return nil
	}
	m.itemsSeq++
	token := m.itemsSeq
	m.mu.Unlock()

	items, err := m.client.ListMail(ctx, owner, folder)
	if err != nil {
		if m.logger != nil {
			m.logger.Printf("load items: %v", err)
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if token != m.itemsSeq || owner != m.owner || folder != m.folder {
		return nil
	}
	m.items = items
	return nil
}

// Send posts the composed mail. Sender, recipients and subject are required;
// body is optional. On success To/Subject/Body are cleared, Sender is kept,
// and a refetch is requested iff the owner is set. The sent item typically
// lands only in the sent folder, so the visible list may not change. On
// failure the compose fields are untouched for a manual retry.
func (m *MailboxController) Send(ctx context.Context) (FollowUp, error) {
	m.mu.Lock()
	compose := m.compose
	owner := m.owner
	m.mu.Unlock()

	recipients := models.SplitRecipients(compose.To)
	if compose.Sender == "" || len(recipients) == 0 || compose.Subject == "" {
		return FollowUpNone, fmt.Errorf("sender, recipients, and subject cannot be empty")
	}

	_, err := m.client.SendMail(ctx, models.NewMailItem{
		Sender:  compose.Sender,
		To:      recipients,
		Subject: compose.Subject,
		Body:    compose.Body,
	})
	if err != nil {
		return FollowUpNone, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.compose.To = ""
	m.compose.Subject = ""
	m.compose.Body = ""
	if owner == "" {
		return FollowUpNone, nil
	}
	return FollowUpLoadItems, nil
}

// Move patches the item's folder. The refetch follow-up is returned even when
// the patch failed: the server is authoritative and the refetch reconciles
// the view either way. Moving never changes the read flag.
func (m *MailboxController) Move(ctx context.Context, id string, folder models.Folder) (FollowUp, error) {
	if id == "" {
		return FollowUpLoadItems, fmt.Errorf("id cannot be empty")
	}
	if !folder.Valid() {
		return FollowUpLoadItems, fmt.Errorf("unknown folder %q", folder)
	}

	_, err := m.client.PatchMail(ctx, id, models.MailPatch{Folder: &folder})
	return FollowUpLoadItems, err
}

// MarkRead patches the item's read flag and requests a refetch.
func (m *MailboxController) MarkRead(ctx context.Context, id string, read bool) (FollowUp, error) {
	if id == "" {
		return FollowUpLoadItems, fmt.Errorf("id cannot be empty")
	}

	_, err := m.client.PatchMail(ctx, id, models.MailPatch{Read: &read})
	return FollowUpLoadItems, err
}

// Run executes a follow-up action returned by a mutation.
func (m *MailboxController) Run(ctx context.Context, f FollowUp) error {
	switch f {
	case FollowUpLoadItems:
		return m.LoadItems(ctx)
	case FollowUpNone:
		return nil
	}
	return fmt.Errorf("follow-up %s is not a mailbox action", f)
}
