// ABOUTME: Tests for the HTTP API: auth endpoints and conversation CRUD.
// ABOUTME: Verifies request handling, ownership checks, and error conditions.

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/muse-gateway/internal/assembler"
	"github.com/2389/muse-gateway/internal/auth"
	"github.com/2389/muse-gateway/internal/config"
	"github.com/2389/muse-gateway/internal/conversation"
	"github.com/2389/muse-gateway/internal/generate"
	"github.com/2389/muse-gateway/internal/memory"
	"github.com/2389/muse-gateway/internal/pipeline"
	"github.com/2389/muse-gateway/internal/store"
)

func newTestGateway(t *testing.T) (*Gateway, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Auth.JWTSecret = "test-secret-key-for-jwt-signing"
	cfg.Auth.TokenLifetime = time.Hour

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cache := memory.NewCache()
	t.Cleanup(func() { cache.Close() })
	tiers := memory.NewTiers(cache, st, nil)

	asm := assembler.New(st, tiers, nil)
	pipe := pipeline.New(generate.NewLocalProvider(), pipeline.DefaultTimeout, nil)
	updater := memory.NewUpdater(tiers, nil)
	orch := conversation.New(st, asm, pipe, updater, nil)

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	gw := New(cfg, st, verifier, orch, nil)

	srv := httptest.NewServer(gw.httpServer.Handler)
	t.Cleanup(srv.Close)
	return gw, srv
}

func postJSON(t *testing.T, srv *httptest.Server, path, token string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// registerUser registers a fresh account and returns its token and user.
func registerUser(t *testing.T, srv *httptest.Server, email string) AuthResponse {
	t.Helper()
	resp := postJSON(t, srv, "/auth/register", "", RegisterRequest{
		Email:    email,
		Name:     "Test User",
		Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var authResp AuthResponse
	decodeJSON(t, resp, &authResp)
	return authResp
}

func TestRegisterAndLogin(t *testing.T) {
	_, srv := newTestGateway(t)

	authResp := registerUser(t, srv, "ana@example.com")
	assert.NotEmpty(t, authResp.Token)
	assert.Equal(t, "ana@example.com", authResp.User.Email)
	assert.Equal(t, store.StyleCasual, authResp.User.Preferences.CommunicationStyle)
	assert.Equal(t, store.LengthMedium, authResp.User.Preferences.ResponseLength)

	// Duplicate email is rejected.
	resp := postJSON(t, srv, "/auth/register", "", RegisterRequest{
		Email:    "ana@example.com",
		Name:     "Someone Else",
		Password: "hunter2hunter2",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Login with the right password.
	resp = postJSON(t, srv, "/auth/login", "", LoginRequest{
		Email:    "ana@example.com",
		Password: "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp AuthResponse
	decodeJSON(t, resp, &loginResp)
	assert.NotEmpty(t, loginResp.Token)

	// Wrong password and unknown email are indistinguishable.
	resp = postJSON(t, srv, "/auth/login", "", LoginRequest{Email: "ana@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
	resp = postJSON(t, srv, "/auth/login", "", LoginRequest{Email: "nobody@example.com", Password: "hunter2hunter2"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestRegisterValidation(t *testing.T) {
	_, srv := newTestGateway(t)

	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{name: "missing email", req: RegisterRequest{Name: "A", Password: "hunter2hunter2"}},
		{name: "bad email", req: RegisterRequest{Email: "not-an-email", Name: "A", Password: "hunter2hunter2"}},
		{name: "missing name", req: RegisterRequest{Email: "a@example.com", Password: "hunter2hunter2"}},
		{name: "short password", req: RegisterRequest{Email: "a@example.com", Name: "A", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv, "/auth/register", "", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			resp.Body.Close()
		})
	}
}

func TestRegisterWithPreferences(t *testing.T) {
	_, srv := newTestGateway(t)

	resp := postJSON(t, srv, "/auth/register", "", RegisterRequest{
		Email:    "bo@example.com",
		Name:     "Bo",
		Password: "hunter2hunter2",
		Preferences: &store.Preferences{
			CommunicationStyle: store.StyleTechnical,
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var authResp AuthResponse
	decodeJSON(t, resp, &authResp)

	assert.Equal(t, store.StyleTechnical, authResp.User.Preferences.CommunicationStyle)
	// Unset fields get defaults.
	assert.Equal(t, store.LengthMedium, authResp.User.Preferences.ResponseLength)
}

func TestMe(t *testing.T) {
	_, srv := newTestGateway(t)
	authResp := registerUser(t, srv, "ana@example.com")

	resp := doRequest(t, srv, http.MethodGet, "/auth/me", authResp.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var user UserResponse
	decodeJSON(t, resp, &user)
	assert.Equal(t, authResp.User.ID, user.ID)

	resp = doRequest(t, srv, http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestConversationCRUD(t *testing.T) {
	_, srv := newTestGateway(t)
	authResp := registerUser(t, srv, "ana@example.com")

	// Create.
	resp := postJSON(t, srv, "/api/conversations", authResp.Token, CreateConversationRequest{Title: "Trip planning"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv ConversationResponse
	decodeJSON(t, resp, &conv)
	assert.Equal(t, "Trip planning", conv.Title)
	assert.Equal(t, authResp.User.ID, conv.UserID)
	assert.Equal(t, 0, conv.MessageCount)

	// Get.
	resp = doRequest(t, srv, http.MethodGet, "/api/conversations/"+conv.ID, authResp.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got ConversationResponse
	decodeJSON(t, resp, &got)
	assert.Equal(t, conv.ID, got.ID)

	// List.
	resp = doRequest(t, srv, http.MethodGet, "/api/conversations", authResp.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ListConversationsResponse
	decodeJSON(t, resp, &list)
	require.Len(t, list.Conversations, 1)

	// Empty messages.
	resp = doRequest(t, srv, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", authResp.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs ConversationMessagesResponse
	decodeJSON(t, resp, &msgs)
	assert.Empty(t, msgs.Messages)

	// Delete.
	resp = doRequest(t, srv, http.MethodDelete, "/api/conversations/"+conv.ID, authResp.Token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, "/api/conversations/"+conv.ID, authResp.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestConversationOwnership(t *testing.T) {
	_, srv := newTestGateway(t)
	owner := registerUser(t, srv, "ana@example.com")
	stranger := registerUser(t, srv, "bo@example.com")

	resp := postJSON(t, srv, "/api/conversations", owner.Token, CreateConversationRequest{Title: "Private"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv ConversationResponse
	decodeJSON(t, resp, &conv)

	// A foreign conversation looks exactly like a missing one.
	for _, probe := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/conversations/" + conv.ID},
		{http.MethodGet, "/api/conversations/" + conv.ID + "/messages"},
		{http.MethodDelete, "/api/conversations/" + conv.ID},
	} {
		resp := doRequest(t, srv, probe.method, probe.path, stranger.Token)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "%s %s", probe.method, probe.path)
		resp.Body.Close()
	}

	// Still intact for the owner.
	resp = doRequest(t, srv, http.MethodGet, "/api/conversations/"+conv.ID, owner.Token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestConversationRouteValidation(t *testing.T) {
	_, srv := newTestGateway(t)
	authResp := registerUser(t, srv, "ana@example.com")

	resp := doRequest(t, srv, http.MethodGet, "/api/conversations/not-a-uuid", authResp.Token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, "/api/conversations/"+uuid.New().String()+"/unknown", authResp.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, "/api/conversations/"+uuid.New().String(), authResp.Token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestHealthz(t *testing.T) {
	_, srv := newTestGateway(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMessagesAfterTurn(t *testing.T) {
	gw, srv := newTestGateway(t)
	authResp := registerUser(t, srv, "ana@example.com")

	resp := postJSON(t, srv, "/api/conversations", authResp.Token, CreateConversationRequest{Title: "Chat"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var conv ConversationResponse
	decodeJSON(t, resp, &conv)

	// Run one turn directly through the orchestrator, then read it back
	// over the HTTP surface.
	events := make(chan *conversation.Event, 16)
	sink := conversation.SinkFunc(func(ev *conversation.Event) { events <- ev })
	require.NoError(t, gw.orch.Submit(authResp.User.ID, conv.ID, "Hello there", sink))
	require.NoError(t, gw.orch.Drain(context.Background()))

	resp = doRequest(t, srv, http.MethodGet, "/api/conversations/"+conv.ID+"/messages", authResp.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs ConversationMessagesResponse
	decodeJSON(t, resp, &msgs)
	require.Len(t, msgs.Messages, 2)
	assert.Equal(t, store.RoleUser, msgs.Messages[0].Role)
	assert.Equal(t, store.RoleAssistant, msgs.Messages[1].Role)
	assert.NotEmpty(t, msgs.Messages[1].Metadata.Confidence)

	resp = doRequest(t, srv, http.MethodGet, "/api/conversations/"+conv.ID, authResp.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated ConversationResponse
	decodeJSON(t, resp, &updated)
	assert.Equal(t, 2, updated.MessageCount)
}
