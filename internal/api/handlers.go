package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"diabuddy/internal/auth0"
	"diabuddy/internal/models"
	"diabuddy/internal/service/chat"
)

// ChatService is the orchestrator surface the transport layer needs.
type ChatService interface {
	StreamQuery(ctx context.Context, userID, query string, emit chat.EmitFunc) error
	Messages(ctx context.Context, userID string) ([]*models.ChatMessage, error)
	DeleteMessages(ctx context.Context, userID string) error
}

// ProfileManager exposes the identity provider's profile operations.
type ProfileManager interface {
	ProfileFields(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error)
	DeleteUser(ctx context.Context, userID string) error
}

// Handler wires the HTTP routes to the chat orchestrator and profile store.
type Handler struct {
	chat          ChatService
	profiles      ProfileManager
	authMW        gin.HandlerFunc
	streamTimeout time.Duration
}

func NewHandler(chatService ChatService, profiles ProfileManager, authMW gin.HandlerFunc, streamTimeout time.Duration) *Handler {
	if streamTimeout <= 0 {
		streamTimeout = 2 * time.Minute
	}
	return &Handler{
		chat:          chatService,
		profiles:      profiles,
		authMW:        authMW,
		streamTimeout: streamTimeout,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.Use(h.authMW)

	api.POST("/me/chat/stream", h.streamChat)
	api.GET("/me/chat", h.getChatHistory)
	api.DELETE("/me/chat", h.deleteChatHistory)

	api.GET("/me", h.getProfile)
	api.PATCH("/me", h.updateProfile)
	api.DELETE("/me", h.deleteUser)
}

func (h *Handler) authorizedUserID(c *gin.Context) (string, bool) {
	userID, ok := auth0.UserIDFromContext(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return "", false
	}
	return userID, true
}

type chatStreamRequest struct {
	Query string `json:"query"`
}

// streamChat runs one chat cycle over SSE. Headers are written lazily so a
// failure before the first event can still answer with a plain HTTP status.
func (h *Handler) streamChat(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req chatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	streamCtx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	started := false
	sendEvent := func(event string, payload any) error {
		if !started {
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			c.Writer.Header().Set("Cache-Control", "no-cache")
			c.Writer.Header().Set("Connection", "keep-alive")
			c.Writer.Header().Set("X-Accel-Buffering", "no")
			c.Status(http.StatusOK)
			started = true
		}
		data, err := json.Marshal(envelope(payload))
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.chat.StreamQuery(streamCtx, userID, req.Query, func(ev chat.Event) error {
		return sendEvent(ev.Name, ev.Data)
	})
	if err == nil {
		return
	}
	if started {
		// The terminal error event (if any) has already been sent.
		log.Printf("chat stream for %s aborted: %v", userID, err)
		return
	}
	if errors.Is(err, auth0.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	log.Printf("chat stream for %s failed before streaming: %v", userID, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process chat request"})
}

// envelope wraps event payloads the way the web client expects: data under a
// "data" key, an empty object for payload-free events.
func envelope(payload any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	return map[string]any{"data": payload}
}

func (h *Handler) getChatHistory(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	messages, err := h.chat.Messages(c.Request.Context(), userID)
	if err != nil {
		log.Printf("load chat history for %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch chat history"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) deleteChatHistory(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.chat.DeleteMessages(c.Request.Context(), userID); err != nil {
		log.Printf("delete chat history for %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat history"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getProfile(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	profile, err := h.profiles.ProfileFields(c.Request.Context(), userID)
	if err != nil {
		h.profileError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updateProfile(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var update models.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validateProfileUpdate(update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile, err := h.profiles.Update(c.Request.Context(), userID, update)
	if err != nil {
		h.profileError(c, userID, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// deleteUser removes the chat history first so a half-finished delete never
// leaves orphaned history behind a recreated account.
func (h *Handler) deleteUser(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.chat.DeleteMessages(c.Request.Context(), userID); err != nil {
		log.Printf("delete chat history for %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
		return
	}
	if err := h.profiles.DeleteUser(c.Request.Context(), userID); err != nil {
		h.profileError(c, userID, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) profileError(c *gin.Context, userID string, err error) {
	if errors.Is(err, auth0.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	log.Printf("profile operation for %s: %v", userID, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "identity provider request failed"})
}

func validateProfileUpdate(update models.ProfileUpdate) error {
	if update.Age != nil && (*update.Age < 0 || *update.Age > 150) {
		return errors.New("age out of range")
	}
	if update.Gender != nil {
		switch *update.Gender {
		case models.GenderMale, models.GenderFemale:
		default:
			return fmt.Errorf("invalid gender: %s", *update.Gender)
		}
	}
	if update.DiabetesType != nil {
		switch *update.DiabetesType {
		case models.DiabetesType1, models.DiabetesType2:
		default:
			return fmt.Errorf("invalid diabetes type: %s", *update.DiabetesType)
		}
	}
	return nil
}
