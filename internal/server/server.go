// Package server implements the chatmaild HTTP API: the remote resource
// contract the chatmail client synchronizes against.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatmail/internal/models"
	"chatmail/internal/store"
)

type Server struct {
	store  *store.Store
	logger *slog.Logger
	mux    *http.ServeMux
	now    func() time.Time
}

func NewServer(st *store.Store, logger *slog.Logger) *Server {
	s := &Server{
		store:  st,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users", s.handleUsers)
	mux.HandleFunc("/api/conversations", s.handleConversations)
	mux.HandleFunc("/api/conversations/", s.handleConversationMessages)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/emails", s.handleEmails)
	mux.HandleFunc("/api/emails/", s.handleEmail)
	mux.HandleFunc("/health", s.handleHealth)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		users, err := s.store.ListUsers(r.Context())
		if err != nil {
			s.serverError(w, "list users", err)
			return
		}
		s.writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		var intent models.NewUser
		if !s.readJSON(w, r, &intent) {
			return
		}
		if strings.TrimSpace(intent.Name) == "" || strings.TrimSpace(intent.Email) == "" {
			s.clientError(w, http.StatusBadRequest, "name and email are required")
			return
		}
		user := models.User{
			ID:    uuid.NewString(),
			Name:  strings.TrimSpace(intent.Name),
			Email: strings.TrimSpace(intent.Email),
		}
		if err := s.store.CreateUser(r.Context(), user, s.now()); err != nil {
			s.serverError(w, "create user", err)
			return
		}
		s.writeJSON(w, http.StatusCreated, user)
	default:
		s.methodNotAllowed(w)
	}
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			s.clientError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		convs, err := s.store.ListConversations(r.Context(), userID)
		if err != nil {
			s.serverError(w, "list conversations", err)
			return
		}
		s.writeJSON(w, http.StatusOK, convs)
	case http.MethodPost:
		var intent models.NewConversation
		if !s.readJSON(w, r, &intent) {
			return
		}
		if len(intent.ParticipantIDs) != 2 {
			s.clientError(w, http.StatusBadRequest, "exactly two participant_ids are required")
			return
		}
		names := make([]string, 0, len(intent.ParticipantIDs))
		for _, id := range intent.ParticipantIDs {
			user, err := s.store.GetUser(r.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				s.clientError(w, http.StatusBadRequest, fmt.Sprintf("unknown participant %q", id))
				return
			}
			if err != nil {
				s.serverError(w, "load participant", err)
				return
			}
			names = append(names, user.Name)
		}
		conv := models.Conversation{
			ID:             uuid.NewString(),
			Title:          strings.Join(names, " & "),
			ParticipantIDs: intent.ParticipantIDs,
		}
		if err := s.store.CreateConversation(r.Context(), conv, s.now()); err != nil {
			s.serverError(w, "create conversation", err)
			return
		}
		s.writeJSON(w, http.StatusCreated, conv)
	default:
		s.methodNotAllowed(w)
	}
}

// handleConversationMessages serves GET /api/conversations/{id}/messages.
func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	convID, tail, found := strings.Cut(rest, "/")
	if !found || tail != "messages" || convID == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := s.store.GetConversation(r.Context(), convID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.serverError(w, "load conversation", err)
		return
	}
	msgs, err := s.store.ListMessages(r.Context(), convID)
	if err != nil {
		s.serverError(w, "list messages", err)
		return
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w)
		return
	}
	var intent models.NewMessage
	if !s.readJSON(w, r, &intent) {
		return
	}
	if intent.ConversationID == "" || intent.SenderID == "" || intent.Content == "" {
		s.clientError(w, http.StatusBadRequest, "conversation_id, sender_id, and content are required")
		return
	}
	if _, err := s.store.GetConversation(r.Context(), intent.ConversationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.clientError(w, http.StatusBadRequest, "unknown conversation")
			return
		}
		s.serverError(w, "load conversation", err)
		return
	}
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: intent.ConversationID,
		SenderID:       intent.SenderID,
		Content:        intent.Content,
		CreatedAt:      s.now(),
	}
	if err := s.store.CreateMessage(r.Context(), msg); err != nil {
		s.serverError(w, "create message", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		owner := r.URL.Query().Get("owner")
		if owner == "" {
			s.clientError(w, http.StatusBadRequest, "owner is required")
			return
		}
		folder, err := models.ParseFolder(r.URL.Query().Get("folder"))
		if err != nil {
			s.clientError(w, http.StatusBadRequest, err.Error())
			return
		}
		items, err := s.store.ListMail(r.Context(), owner, folder)
		if err != nil {
			s.serverError(w, "list mail", err)
			return
		}
		s.writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var intent models.NewMailItem
		if !s.readJSON(w, r, &intent) {
			return
		}
		if intent.Sender == "" || len(intent.To) == 0 || intent.Subject == "" {
			s.clientError(w, http.StatusBadRequest, "sender, to, and subject are required")
			return
		}
		now := s.now()

		// One copy per owner: the sender keeps a read copy in sent, every
		// recipient gets an unread copy in inbox. The sender's copy is the
		// canonical response.
		sent := models.MailItem{
			ID:        uuid.NewString(),
			Sender:    intent.Sender,
			To:        intent.To,
			Subject:   intent.Subject,
			Body:      intent.Body,
			Read:      true,
			Folder:    models.FolderSent,
			CreatedAt: now,
		}
		if err := s.store.CreateMailItem(r.Context(), intent.Sender, sent); err != nil {
			s.serverError(w, "create mail item", err)
			return
		}
		for _, recipient := range intent.To {
			inbox := models.MailItem{
				ID:        uuid.NewString(),
				Sender:    intent.Sender,
				To:        intent.To,
				Subject:   intent.Subject,
				Body:      intent.Body,
				Read:      false,
				Folder:    models.FolderInbox,
				CreatedAt: now,
			}
			if err := s.store.CreateMailItem(r.Context(), recipient, inbox); err != nil {
				s.serverError(w, "create mail item", err)
				return
			}
		}
		s.writeJSON(w, http.StatusCreated, sent)
	default:
		s.methodNotAllowed(w)
	}
}

// handleEmail serves PATCH /api/emails/{id}.
func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		s.methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/emails/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	var patch models.MailPatch
	if !s.readJSON(w, r, &patch) {
		return
	}
	item, err := s.store.PatchMailItem(r.Context(), id, patch)
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.serverError(w, "patch mail item", err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.clientError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func (s *Server) clientError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "error", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	s.clientError(w, http.StatusMethodNotAllowed, "method not allowed")
}
