package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"asanabot.arpa/bot/asana"
	"asanabot.arpa/bot/store"
)

type fakeVerifier struct {
	err error
}

func (f fakeVerifier) VerifyRequest(headers http.Header, body []byte) error {
	return f.err
}

type fakeAuthorizer struct{}

func (fakeAuthorizer) AuthorizeURL(userID, roomID string) string {
	return "https://app.asana.com/-/oauth_authorize?state=" + userID + "_" + roomID + "_nonce"
}

type fakeSettings struct {
	workspace string
}

func (f fakeSettings) DefaultWorkspace() string { return f.workspace }

type testHarness struct {
	commands *Commands
	store    *store.Store
}

func newTestCommands(t *testing.T, asanaHandler http.HandlerFunc) *testHarness {
	t.Helper()
	st, err := store.NewStore(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	log := zaptest.NewLogger(t)
	baseURL := "http://asana.invalid"
	if asanaHandler != nil {
		srv := httptest.NewServer(asanaHandler)
		t.Cleanup(srv.Close)
		baseURL = srv.URL
	}
	api := asana.NewClient(log, asana.Config{BaseURL: baseURL})

	c := NewCommands(log, Config{
		PublicURL:   "https://bot.example",
		WebhookPath: "/webhooks/asana",
	}, st, api, fakeVerifier{}, fakeAuthorizer{}, fakeSettings{workspace: "ws1"})
	return &testHarness{commands: c, store: st}
}

func slashRequest(t *testing.T, text, userID, channelID string) *http.Request {
	t.Helper()
	form := url.Values{
		"command":    {"/asana"},
		"text":       {text},
		"user_id":    {userID},
		"channel_id": {channelID},
	}
	req := httptest.NewRequest(http.MethodPost, "/commands", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v, body %s", err, rec.Body.String())
	}
	return resp
}

func TestHandleSlashCommand_Help(t *testing.T) {
	h := newTestCommands(t, nil)

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "help", "U1", "C1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.ResponseType != "ephemeral" {
		t.Errorf("response type = %q", resp.ResponseType)
	}
	if !strings.Contains(resp.Text, "/asana auth") {
		t.Errorf("help text missing auth entry: %q", resp.Text)
	}
}

func TestHandleSlashCommand_EmptyTextDefaultsToHelp(t *testing.T) {
	h := newTestCommands(t, nil)

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "", "U1", "C1"))

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Text, "Available commands") {
		t.Errorf("empty command should render help, got %q", resp.Text)
	}
}

func TestHandleSlashCommand_RejectsBadSignature(t *testing.T) {
	h := newTestCommands(t, nil)
	h.commands.verifier = fakeVerifier{err: errors.New("signature mismatch")}

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "help", "U1", "C1"))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandleSlashCommand_Auth(t *testing.T) {
	h := newTestCommands(t, nil)

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "auth", "U1", "C1"))

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Text, "oauth_authorize") || !strings.Contains(resp.Text, "U1_C1") {
		t.Errorf("auth response = %q", resp.Text)
	}
}

func TestHandleSlashCommand_TasksRequiresAuth(t *testing.T) {
	h := newTestCommands(t, nil)

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "tasks", "U1", "C1"))

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Text, "/asana auth") {
		t.Errorf("unauthenticated tasks should prompt auth, got %q", resp.Text)
	}
}

func TestHandleSlashCommand_Tasks(t *testing.T) {
	h := newTestCommands(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[{"gid":"1","name":"Write release notes","due_on":"2026-09-01"}]}`))
	})
	if err := h.store.PutToken(context.Background(), store.UserToken{UserID: "U1", AccessToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "tasks", "U1", "C1"))

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Text, "Write release notes") {
		t.Errorf("tasks response = %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "due 2026-09-01") {
		t.Errorf("tasks response missing due date: %q", resp.Text)
	}
}

func TestHandleSlashCommand_WebhookCreate(t *testing.T) {
	h := newTestCommands(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/webhooks" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var payload struct {
			Data map[string]string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Data["target"] != "https://bot.example/webhooks/asana" {
			t.Errorf("webhook target = %q", payload.Data["target"])
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"gid":"wh-1","active":true}}`))
	})
	if err := h.store.PutToken(context.Background(), store.UserToken{UserID: "U1", AccessToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "webhook create proj-1", "U1", "C1"))

	resp := decodeResponse(t, rec)
	if resp.ResponseType != "in_channel" {
		t.Errorf("response type = %q, want in_channel", resp.ResponseType)
	}
	if !strings.Contains(resp.Text, "wh-1") {
		t.Errorf("create response = %q", resp.Text)
	}

	mapping, err := h.store.MappingByResourceID(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("MappingByResourceID() error: %v", err)
	}
	if mapping == nil || mapping.WebhookID != "wh-1" || mapping.RoomID != "C1" || mapping.CreatedBy != "U1" {
		t.Errorf("stored mapping = %+v", mapping)
	}
}

func TestHandleSlashCommand_WebhookDelete(t *testing.T) {
	h := newTestCommands(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/webhooks/wh-1" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	ctx := context.Background()
	if err := h.store.PutToken(ctx, store.UserToken{UserID: "U1", AccessToken: "tok"}); err != nil {
		t.Fatal(err)
	}
	if err := h.store.PutMapping(ctx, store.WebhookMapping{ResourceID: "proj-1", WebhookID: "wh-1", RoomID: "C1"}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "webhook delete wh-1", "U1", "C1"))

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Text, "deleted") {
		t.Errorf("delete response = %q", resp.Text)
	}

	mapping, err := h.store.MappingByResourceID(ctx, "proj-1")
	if err != nil {
		t.Fatal(err)
	}
	if mapping != nil {
		t.Errorf("mapping survived delete: %+v", mapping)
	}
}

func TestHandleSlashCommand_Logout(t *testing.T) {
	h := newTestCommands(t, nil)
	ctx := context.Background()
	if err := h.store.PutToken(ctx, store.UserToken{UserID: "U1", AccessToken: "tok"}); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "logout", "U1", "C1"))

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Text, "disconnected") {
		t.Errorf("logout response = %q", resp.Text)
	}

	token, err := h.store.TokenByUserID(ctx, "U1")
	if err != nil {
		t.Fatal(err)
	}
	if token != nil {
		t.Errorf("token survived logout: %+v", token)
	}
}

func TestHandleSlashCommand_UnknownSubcommand(t *testing.T) {
	h := newTestCommands(t, nil)

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, slashRequest(t, "frobnicate", "U1", "C1"))

	resp := decodeResponse(t, rec)
	if !strings.Contains(resp.Text, "Unknown subcommand") {
		t.Errorf("unknown subcommand response = %q", resp.Text)
	}
}

func TestHandleSlashCommand_MethodNotAllowed(t *testing.T) {
	h := newTestCommands(t, nil)

	rec := httptest.NewRecorder()
	h.commands.HandleSlashCommand(rec, httptest.NewRequest(http.MethodGet, "/commands", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}
