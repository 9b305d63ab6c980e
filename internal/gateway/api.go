// ABOUTME: HTTP API handlers for accounts and conversation management.
// ABOUTME: Provides /auth endpoints and the /api/conversations surface.

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/muse-gateway/internal/auth"
	"github.com/2389/muse-gateway/internal/store"
)

// RegisterRequest is the JSON request body for POST /auth/register.
type RegisterRequest struct {
	Email       string             `json:"email"`
	Name        string             `json:"name"`
	Password    string             `json:"password"`
	Preferences *store.Preferences `json:"preferences,omitempty"`
}

// LoginRequest is the JSON request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the JSON shape of a user account.
type UserResponse struct {
	ID          string            `json:"id"`
	Email       string            `json:"email"`
	Name        string            `json:"name"`
	Preferences store.Preferences `json:"preferences"`
	CreatedAt   string            `json:"created_at"`
}

// AuthResponse is the JSON response for register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// CreateConversationRequest is the JSON request body for POST /api/conversations.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// ConversationResponse is the JSON shape of a conversation.
type ConversationResponse struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	UserID       string                `json:"user_id"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
	MessageCount int                   `json:"message_count"`
	Context      store.ContextSnapshot `json:"context"`
}

// ListConversationsResponse is the JSON response for GET /api/conversations.
type ListConversationsResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

// MessageResponse is the JSON shape of a message.
type MessageResponse struct {
	ID             string                `json:"id"`
	Content        string                `json:"content"`
	Role           string                `json:"role"`
	Timestamp      string                `json:"timestamp"`
	ConversationID string                `json:"conversation_id"`
	Metadata       store.MessageMetadata `json:"metadata"`
}

// ConversationMessagesResponse is the JSON response for GET /api/conversations/{id}/messages.
type ConversationMessagesResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
}

func toUserResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Preferences: u.Preferences,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toConversationResponse(c *store.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:           c.ID,
		Title:        c.Title,
		UserID:       c.UserID,
		CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    c.UpdatedAt.UTC().Format(time.RFC3339),
		MessageCount: c.MessageCount,
		Context:      c.Context,
	}
}

func toMessageResponse(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		Content:        m.Content,
		Role:           m.Role,
		Timestamp:      m.CreatedAt.UTC().Format(time.RFC3339Nano),
		ConversationID: m.ConversationID,
		Metadata:       m.Metadata,
	}
}

// handleRegister handles POST /auth/register requests.
// It creates an account with default preferences unless the caller
// supplies its own, and returns a token for immediate use.
func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		g.sendJSONError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if req.Name == "" {
		g.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	prefs := store.DefaultPreferences()
	if req.Preferences != nil {
		prefs = *req.Preferences
		prefs.Normalize()
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		Preferences:  prefs,
		CreatedAt:    time.Now().UTC(),
	}
	if err := g.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			g.sendJSONError(w, http.StatusConflict, "email already registered")
			return
		}
		g.logger.Error("failed to create user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := g.verifier.Generate(user.ID, g.tokenLifetime)
	if err != nil {
		g.logger.Error("failed to generate token", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("user registered", "user_id", user.ID)
	g.writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: toUserResponse(user)})
}

// handleLogin handles POST /auth/login requests. Unknown emails and wrong
// passwords produce the same response.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := g.store.GetUserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		g.logger.Error("failed to look up user", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		g.sendJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := g.verifier.Generate(user.ID, g.tokenLifetime)
	if err != nil {
		g.logger.Error("failed to generate token", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: toUserResponse(user)})
}

// handleMe handles GET /auth/me requests for the authenticated user.
func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	identity := auth.MustFromContext(r.Context())
	user, err := g.store.GetUser(r.Context(), identity.UserID)
	if err != nil {
		g.logger.Error("failed to load user", "error", err, "user_id", identity.UserID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	g.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// handleConversations handles GET and POST /api/conversations.
func (g *Gateway) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		g.handleListConversations(w, r)
	case http.MethodPost:
		g.handleCreateConversation(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	convs, err := g.store.ListConversations(r.Context(), identity.UserID)
	if err != nil {
		g.logger.Error("failed to list conversations", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := ListConversationsResponse{Conversations: make([]ConversationResponse, len(convs))}
	for i, c := range convs {
		response.Conversations[i] = toConversationResponse(c)
	}
	g.writeJSON(w, http.StatusOK, response)
}

func (g *Gateway) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustFromContext(r.Context())

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		req.Title = "New Conversation"
	}

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:        uuid.New().String(),
		Title:     req.Title,
		UserID:    identity.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.store.CreateConversation(r.Context(), conv); err != nil {
		g.logger.Error("failed to create conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, http.StatusCreated, toConversationResponse(conv))
}

// handleConversationRoutes dispatches /api/conversations/{id} and
// /api/conversations/{id}/messages.
func (g *Gateway) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	convID, sub, _ := strings.Cut(rest, "/")
	if convID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if _, err := uuid.Parse(convID); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid conversation_id format")
		return
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			g.handleGetConversation(w, r, convID)
		case http.MethodDelete:
			g.handleDeleteConversation(w, r, convID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "messages":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		g.handleConversationMessages(w, r, convID)
	default:
		g.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

// ownedConversation loads a conversation and verifies ownership. Foreign
// conversations look identical to missing ones.
func (g *Gateway) ownedConversation(w http.ResponseWriter, r *http.Request, convID string) *store.Conversation {
	identity := auth.MustFromContext(r.Context())

	conv, err := g.store.GetConversation(r.Context(), convID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			g.sendJSONError(w, http.StatusNotFound, "conversation not found")
			return nil
		}
		g.logger.Error("failed to get conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	if conv.UserID != identity.UserID {
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return nil
	}
	return conv
}

func (g *Gateway) handleGetConversation(w http.ResponseWriter, r *http.Request, convID string) {
	conv := g.ownedConversation(w, r, convID)
	if conv == nil {
		return
	}
	g.writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (g *Gateway) handleDeleteConversation(w http.ResponseWriter, r *http.Request, convID string) {
	if g.ownedConversation(w, r, convID) == nil {
		return
	}
	if err := g.store.DeleteConversation(r.Context(), convID); err != nil {
		g.logger.Error("failed to delete conversation", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleConversationMessages(w http.ResponseWriter, r *http.Request, convID string) {
	if g.ownedConversation(w, r, convID) == nil {
		return
	}

	messages, err := g.store.GetConversationMessages(r.Context(), convID)
	if err != nil {
		g.logger.Error("failed to get messages", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	response := ConversationMessagesResponse{
		ConversationID: convID,
		Messages:       make([]MessageResponse, len(messages)),
	}
	for i, m := range messages {
		response.Messages[i] = toMessageResponse(m)
	}
	g.writeJSON(w, http.StatusOK, response)
}

// writeJSON writes a JSON response with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
