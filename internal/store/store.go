// Package store persists the chatmaild development server's resources in
// SQLite. An empty path opens an in-memory database, which the tests use.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chatmail/internal/models"
)

// ErrNotFound is returned when a resource id does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

// Open opens the database at the given path and prepares it for use.
func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" || trimmed == ":memory:" {
		trimmed = ":memory:"
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            last_message TEXT NOT NULL DEFAULT '',
            updated_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
            conversation_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            PRIMARY KEY (conversation_id, user_id),
            FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id TEXT PRIMARY KEY,
            conversation_id TEXT NOT NULL,
            sender_id TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS mail_items (
            id TEXT PRIMARY KEY,
            owner TEXT NOT NULL,
            sender TEXT NOT NULL,
            recipients TEXT NOT NULL,
            subject TEXT NOT NULL,
            body TEXT NOT NULL,
            read_flag INTEGER NOT NULL DEFAULT 0,
            folder TEXT NOT NULL,
            created_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_mail_owner_folder ON mail_items(owner, folder, created_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a user record.
func (s *Store) CreateUser(ctx context.Context, u models.User, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// ListUsers returns all users in creation order.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns one user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateConversation inserts a conversation and its participant rows.
func (s *Store) CreateConversation(ctx context.Context, conv models.Conversation, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, last_message, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.LastMessage, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	for _, pid := range conv.ParticipantIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES (?, ?)`,
			conv.ID, pid)
		if err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	return tx.Commit()
}

// ListConversations returns the conversations a user participates in, most
// recently active first.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT c.id, c.title, c.last_message
FROM conversations c
JOIN conversation_participants p ON p.conversation_id = c.id
WHERE p.user_id = ?
ORDER BY c.updated_at DESC, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.Title, &c.LastMessage); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		participants, err := s.listParticipants(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.ParticipantIDs = participants
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns one conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, last_message FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &c.LastMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	participants, err := s.listParticipants(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.ParticipantIDs = participants
	return &c, nil
}

func (s *Store) listParticipants(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = ? ORDER BY user_id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateMessage inserts a message and bumps its conversation's last_message
// and activity timestamp in the same transaction.
func (s *Store) CreateMessage(ctx context.Context, msg models.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET last_message = ?, updated_at = ? WHERE id = ?`,
		msg.Content, msg.CreatedAt.UnixMilli(), msg.ConversationID)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return tx.Commit()
}

// ListMessages returns a conversation's messages oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, sender_id, content, created_at
         FROM messages WHERE conversation_id = ? ORDER BY created_at, id`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		var created int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = time.UnixMilli(created).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CreateMailItem inserts one owner's copy of a mail item.
func (s *Store) CreateMailItem(ctx context.Context, owner string, item models.MailItem) error {
	recipients, err := json.Marshal(item.To)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO mail_items (id, owner, sender, recipients, subject, body, read_flag, folder, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, owner, item.Sender, string(recipients), item.Subject, item.Body,
		boolToInt(item.Read), item.Folder.String(), item.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert mail item: %w", err)
	}
	return nil
}

// ListMail returns one (owner, folder) listing, newest first.
func (s *Store) ListMail(ctx context.Context, owner string, folder models.Folder) ([]models.MailItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, sender, recipients, subject, body, read_flag, folder, created_at
FROM mail_items WHERE owner = ? AND folder = ?
ORDER BY created_at DESC, id`, owner, folder.String())
	if err != nil {
		return nil, fmt.Errorf("list mail: %w", err)
	}
	defer rows.Close()

	items := []models.MailItem{}
	for rows.Next() {
		item, err := scanMailItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// GetMailItem returns one item by id.
func (s *Store) GetMailItem(ctx context.Context, id string) (*models.MailItem, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, sender, recipients, subject, body, read_flag, folder, created_at
FROM mail_items WHERE id = ?`, id)
	item, err := scanMailItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return item, err
}

// PatchMailItem applies a partial update and returns the updated item.
func (s *Store) PatchMailItem(ctx context.Context, id string, patch models.MailPatch) (*models.MailItem, error) {
	sets := []string{}
	args := []interface{}{}
	if patch.Folder != nil {
		sets = append(sets, "folder = ?")
		args = append(args, patch.Folder.String())
	}
	if patch.Read != nil {
		sets = append(sets, "read_flag = ?")
		args = append(args, boolToInt(*patch.Read))
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			"UPDATE mail_items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("patch mail item: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetMailItem(ctx, id)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMailItem(row rowScanner) (*models.MailItem, error) {
	var item models.MailItem
	var recipients string
	var read int
	var folder string
	var created int64
	if err := row.Scan(&item.ID, &item.Sender, &recipients, &item.Subject, &item.Body, &read, &folder, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan mail item: %w", err)
	}
	if err := json.Unmarshal([]byte(recipients), &item.To); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	parsed, err := models.ParseFolder(folder)
	if err != nil {
		return nil, err
	}
	item.Folder = parsed
	item.Read = read != 0
	item.CreatedAt = time.UnixMilli(created).UTC()
	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
