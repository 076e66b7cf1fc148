package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"diabuddy/internal/auth0"
	"diabuddy/internal/models"
	"diabuddy/internal/service/chat"
)

type fakeChatService struct {
	events    []chat.Event
	streamErr error
	messages  []*models.ChatMessage
	calls     []string
}

func (f *fakeChatService) StreamQuery(_ context.Context, _ string, _ string, emit chat.EmitFunc) error {
	f.calls = append(f.calls, "stream")
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return f.streamErr
}

func (f *fakeChatService) Messages(_ context.Context, _ string) ([]*models.ChatMessage, error) {
	f.calls = append(f.calls, "messages")
	if f.messages == nil {
		return []*models.ChatMessage{}, nil
	}
	return f.messages, nil
}

func (f *fakeChatService) DeleteMessages(_ context.Context, _ string) error {
	f.calls = append(f.calls, "delete_messages")
	return nil
}

type fakeProfileManager struct {
	profiles map[string]*models.Profile
	calls    []string
}

func (f *fakeProfileManager) ProfileFields(_ context.Context, userID string) (*models.Profile, error) {
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, auth0.ErrUserNotFound
	}
	return profile, nil
}

func (f *fakeProfileManager) Update(_ context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, auth0.ErrUserNotFound
	}
	if update.Nickname != nil {
		profile.Nickname = *update.Nickname
	}
	return profile, nil
}

func (f *fakeProfileManager) DeleteUser(_ context.Context, userID string) error {
	f.calls = append(f.calls, "delete_user")
	if _, ok := f.profiles[userID]; !ok {
		return auth0.ErrUserNotFound
	}
	delete(f.profiles, userID)
	return nil
}

type staticResolver struct{}

func (staticResolver) UserInfo(_ context.Context, accessToken string) (string, error) {
	if accessToken != "valid-token" {
		return "", fmt.Errorf("invalid token")
	}
	return "auth0|alice", nil
}

func newTestRouter(t *testing.T, chatSvc ChatService, profiles ProfileManager) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	verifier := auth0.NewTokenVerifier(staticResolver{}, nil)
	NewHandler(chatSvc, profiles, verifier.Middleware(), time.Minute).RegisterRoutes(router)
	return router
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer valid-token")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			}
		}
		if ev.name != "" {
			events = append(events, ev)
		}
	}
	return events
}

func TestStreamChatEmitsEnvelopedEventsInOrder(t *testing.T) {
	userMsg := models.NewChatMessage(models.RoleHuman, "hello")
	aiMsg := models.NewChatMessage(models.RoleAI, "Thinking...")
	chatSvc := &fakeChatService{events: []chat.Event{
		{Name: chat.EventUserMessage, Data: userMsg},
		{Name: chat.EventAIResponseStart, Data: aiMsg},
		{Name: chat.EventAIMessageChunk, Data: chat.ChunkData{MessageID: aiMsg.MessageID, Chunk: "Hi"}},
		{Name: chat.EventAIResponseEnd},
	}}
	router := newTestRouter(t, chatSvc, &fakeProfileManager{})

	rec := doJSONRequest(t, router, http.MethodPost, "/api/me/chat/stream", `{"query":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := parseSSE(t, rec.Body.String())
	wantOrder := []string{
		chat.EventUserMessage,
		chat.EventAIResponseStart,
		chat.EventAIMessageChunk,
		chat.EventAIResponseEnd,
	}
	if len(events) != len(wantOrder) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantOrder), len(events), events)
	}
	for i, want := range wantOrder {
		if events[i].name != want {
			t.Fatalf("event %d = %s, want %s", i, events[i].name, want)
		}
	}

	var start struct {
		Data models.ChatMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(events[1].data), &start); err != nil {
		t.Fatalf("decode start payload: %v", err)
	}
	if start.Data.Content != "Thinking..." || start.Data.Role != models.RoleAI {
		t.Fatalf("unexpected start payload: %+v", start.Data)
	}

	var chunk struct {
		Data chat.ChunkData `json:"data"`
	}
	if err := json.Unmarshal([]byte(events[2].data), &chunk); err != nil {
		t.Fatalf("decode chunk payload: %v", err)
	}
	if chunk.Data.Chunk != "Hi" || chunk.Data.MessageID != aiMsg.MessageID {
		t.Fatalf("unexpected chunk payload: %+v", chunk.Data)
	}

	if events[3].data != "{}" {
		t.Fatalf("terminal event payload = %q, want empty object", events[3].data)
	}
}

func TestStreamChatUnknownUserReturns404(t *testing.T) {
	chatSvc := &fakeChatService{streamErr: fmt.Errorf("load profile: %w", auth0.ErrUserNotFound)}
	router := newTestRouter(t, chatSvc, &fakeProfileManager{})

	rec := doJSONRequest(t, router, http.MethodPost, "/api/me/chat/stream", `{"query":"hello"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestStreamChatRequiresQuery(t *testing.T) {
	router := newTestRouter(t, &fakeChatService{}, &fakeProfileManager{})

	rec := doJSONRequest(t, router, http.MethodPost, "/api/me/chat/stream", `{"query":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRoutesRejectMissingToken(t *testing.T) {
	router := newTestRouter(t, &fakeChatService{}, &fakeProfileManager{})

	req := httptest.NewRequest(http.MethodGet, "/api/me/chat", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetChatHistoryReturnsEmptyListForNewUser(t *testing.T) {
	router := newTestRouter(t, &fakeChatService{}, &fakeProfileManager{})

	rec := doJSONRequest(t, router, http.MethodGet, "/api/me/chat", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want empty JSON array", got)
	}
}

func TestDeleteChatHistoryReturnsNoContent(t *testing.T) {
	chatSvc := &fakeChatService{}
	router := newTestRouter(t, chatSvc, &fakeProfileManager{})

	rec := doJSONRequest(t, router, http.MethodDelete, "/api/me/chat", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(chatSvc.calls) != 1 || chatSvc.calls[0] != "delete_messages" {
		t.Fatalf("unexpected calls: %v", chatSvc.calls)
	}
}

func TestGetProfileForUnknownUserReturns404(t *testing.T) {
	router := newTestRouter(t, &fakeChatService{}, &fakeProfileManager{profiles: map[string]*models.Profile{}})

	rec := doJSONRequest(t, router, http.MethodGet, "/api/me", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestUpdateProfileRejectsInvalidEnum(t *testing.T) {
	profiles := &fakeProfileManager{profiles: map[string]*models.Profile{
		"auth0|alice": {Nickname: "Alice"},
	}}
	router := newTestRouter(t, &fakeChatService{}, profiles)

	rec := doJSONRequest(t, router, http.MethodPatch, "/api/me", `{"diabetes_type":"Type 3"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateProfileAppliesChange(t *testing.T) {
	profiles := &fakeProfileManager{profiles: map[string]*models.Profile{
		"auth0|alice": {Nickname: "Alice", Age: 34},
	}}
	router := newTestRouter(t, &fakeChatService{}, profiles)

	rec := doJSONRequest(t, router, http.MethodPatch, "/api/me", `{"nickname":"Al"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var profile models.Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Nickname != "Al" || profile.Age != 34 {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestDeleteUserRemovesHistoryBeforeIdentity(t *testing.T) {
	chatSvc := &fakeChatService{}
	profiles := &fakeProfileManager{profiles: map[string]*models.Profile{
		"auth0|alice": {Nickname: "Alice"},
	}}
	router := newTestRouter(t, chatSvc, profiles)

	rec := doJSONRequest(t, router, http.MethodDelete, "/api/me", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(chatSvc.calls) != 1 || chatSvc.calls[0] != "delete_messages" {
		t.Fatalf("history not deleted first: %v", chatSvc.calls)
	}
	if len(profiles.calls) != 1 || profiles.calls[0] != "delete_user" {
		t.Fatalf("identity record not deleted: %v", profiles.calls)
	}
}
