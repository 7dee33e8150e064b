package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/petrorag/petrorag/internal/api"
	"github.com/petrorag/petrorag/internal/api/middleware"
	"github.com/petrorag/petrorag/internal/service"
)

const SessionHeader = "X-Session-ID"

type QueryService interface {
	AnswerInSession(ctx context.Context, sessionID, query string) (string, error)
	ClearSession(sessionID string) bool
	MemoryEnabled() bool
	Stats() service.EngineStats
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type QueryResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id,omitempty"`
}

type ClearMemoryRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

type ClearMemoryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
	Chunks int    `json:"chunks"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "Query parameter missing")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "Query parameter missing")
		return
	}

	sessionID := ""
	if h.svc.MemoryEnabled() {
		sessionID = resolveSessionID(r, req.SessionID)
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		w.Header().Set(SessionHeader, sessionID)
	}

	answer, err := h.svc.AnswerInSession(r.Context(), sessionID, req.Query)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, QueryResponse{Answer: answer, SessionID: sessionID})
}

// ClearMemory forgets the caller's conversation history. The body is
// optional; the session may also come from the X-Session-ID header.
func (h *QueryHandler) ClearMemory(w http.ResponseWriter, r *http.Request) {
	if !h.svc.MemoryEnabled() {
		api.JSON(w, http.StatusOK, ClearMemoryResponse{Success: true, Message: "Memory functionality is disabled"})
		return
	}

	var req ClearMemoryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sessionID := resolveSessionID(r, req.SessionID)
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}

	h.svc.ClearSession(sessionID)
	w.Header().Set(SessionHeader, sessionID)
	api.JSON(w, http.StatusOK, ClearMemoryResponse{Success: true, Message: "Memory cleared"})
}

func (h *QueryHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.svc.Stats()
	api.JSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Ready:  stats.Ready,
		Chunks: stats.Chunks,
	})
}

// resolveSessionID prefers the body field over the header. A body value
// that fails middleware.ValidID is ignored.
func resolveSessionID(r *http.Request, fromBody string) string {
	if id := strings.TrimSpace(fromBody); middleware.ValidID(id) {
		return id
	}
	return middleware.GetSessionID(r.Context())
}
