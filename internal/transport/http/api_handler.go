package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/domain"
)

// APIHandler exposes the session lifecycle over plain JSON endpoints: hosts
// create sessions and players join through here, then both switch to the
// websocket for live play.
type APIHandler struct {
	service *app.LobbyService
}

func NewAPIHandler(service *app.LobbyService) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts the API routes.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.sessionView)
	mux.HandleFunc("GET /api/sessions/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("POST /api/sessions/{id}/status", h.setStatus)
	mux.HandleFunc("POST /api/sessions/{id}/join", h.join)
	mux.HandleFunc("GET /api/codes/{code}", h.sessionByCode)
	mux.HandleFunc("POST /api/participants/{id}/kick", h.kick)
	mux.HandleFunc("GET /api/me", h.currentParticipant)
}

func (h *APIHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuizID string `json:"quizId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		writeError(w, domain.ErrQuizNotFound)
		return
	}
	session, err := h.service.CreateSession(r.Context(), req.QuizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *APIHandler) sessionView(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.SessionView(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *APIHandler) sessionByCode(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.SessionByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *APIHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status domain.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidTransition)
		return
	}
	session, err := h.service.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrNameInvalid)
		return
	}
	participant, token, err := h.service.Join(r.Context(), r.PathValue("id"), req.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Participant domain.Participant `json:"participant"`
		Token       string             `json:"token"`
	}{participant, token})
}

func (h *APIHandler) kick(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Kick(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) currentParticipant(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, domain.ErrTokenInvalid)
		return
	}
	participant, err := h.service.CurrentParticipant(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participant)
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

type errorBody struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	if kind == domain.KindUnknown || kind == domain.KindUnavailable {
		log.Printf("api: %v", err)
	}
	message := err.Error()
	if kind == domain.KindUnknown {
		// Internal details stay in the log.
		message = "internal error"
	}
	writeJSON(w, status, errorBody{Kind: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		log.Printf("api: encode response: %v", err)
	}
}
