package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User is a chat participant. Identity is assigned by the remote service;
// the client only ever holds a read projection.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Conversation is a two-party chat. Listing order is server-defined
// (most recently active first) and must not be re-sorted locally.
type Conversation struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	LastMessage    string   `json:"last_message"`
	ParticipantIDs []string `json:"participant_ids"`
}

// Message belongs to exactly one conversation and is append-only from the
// client's perspective.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Folder is the closed set of mailbox folders.
type Folder string

const (
	FolderInbox    Folder = "inbox"
	FolderSent     Folder = "sent"
	FolderTrash    Folder = "trash"
	FolderArchived Folder = "archived"
)

// Folders lists all valid folders in display order.
func Folders() []Folder {
	return []Folder{FolderInbox, FolderSent, FolderTrash, FolderArchived}
}

// Valid reports whether f is one of the four known folders.
func (f Folder) Valid() bool {
	switch f {
	case FolderInbox, FolderSent, FolderTrash, FolderArchived:
		return true
	}
	return false
}

func (f Folder) String() string {
	return string(f)
}

// ParseFolder validates a raw folder value coming from user input or the wire.
func ParseFolder(s string) (Folder, error) {
	f := Folder(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown folder %q", s)
	}
	return f, nil
}

// UnmarshalJSON rejects payloads carrying a folder outside the closed enum,
// so malformed resources fail at the decode boundary instead of propagating.
func (f *Folder) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseFolder(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MailItem is one mailbox entry. An item lives in exactly one folder at a
// time; folder transitions and read flags change only via PatchMail.
type MailItem struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	Folder    Folder    `json:"folder"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser is the creation intent posted to the remote service.
type NewUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewConversation requests a conversation between the listed participants.
type NewConversation struct {
	ParticipantIDs []string `json:"participant_ids"`
}

// NewMessage is the send-message intent.
type NewMessage struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
}

// NewMailItem is the send-mail intent.
type NewMailItem struct {
	Sender  string   `json:"sender"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// MailPatch is a partial update; nil fields are left untouched by the server.
// Moving an item never implies a read-state change, so the two stay separate.
type MailPatch struct {
	Folder *Folder `json:"folder,omitempty"`
	Read   *bool   `json:"read,omitempty"`
}

// SplitRecipients turns a comma-separated recipient line into a clean list:
// segments are trimmed and empty ones dropped.
func SplitRecipients(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
