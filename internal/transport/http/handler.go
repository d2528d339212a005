package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quizflow/internal/app"
	"quizflow/internal/domain"
)

// Handler exposes the public quiz API consumed by the embed script: the
// definition fetch, the session lifecycle, and a websocket event feed.
type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the public endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/public/quiz/{quizID}", func(r chi.Router) {
		r.Get("/", h.getQuiz)
		r.Post("/sessions", h.openSession)
		r.Patch("/sessions/{sessionID}", h.syncAnswers)
		r.Post("/sessions/{sessionID}/complete", h.completeSession)
		r.Get("/sessions/{sessionID}/events", h.watchSession)
	})
	return r
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	preview := r.URL.Query().Get("preview") == "1"

	quiz, err := h.service.GetQuiz(r.Context(), quizID, preview)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")

	var attribution domain.SessionAttribution
	if err := decodeJSON(r, &attribution); err != nil {
		http.Error(w, "invalid session payload", http.StatusBadRequest)
		return
	}
	session, err := h.service.OpenSession(r.Context(), quizID, attribution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": session.ID})
}

type syncPayload struct {
	Answers domain.AnswerSet `json:"answers"`
}

func (h *Handler) syncAnswers(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	sessionID := chi.URLParam(r, "sessionID")

	var payload syncPayload
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, "invalid answers payload", http.StatusBadRequest)
		return
	}
	session, err := h.service.SyncAnswers(r.Context(), quizID, sessionID, payload.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type completePayload struct {
	LeadData map[string]string `json:"leadData,omitempty"`
	Answers  domain.AnswerSet  `json:"answers,omitempty"`
}

func (h *Handler) completeSession(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	sessionID := chi.URLParam(r, "sessionID")

	var payload completePayload
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, "invalid completion payload", http.StatusBadRequest)
		return
	}
	session, err := h.service.CompleteSession(r.Context(), quizID, sessionID, payload.LeadData, payload.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// decodeJSON tolerates an empty body; session creation from static embeds
// often posts no attribution at all.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrSessionCompleted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
