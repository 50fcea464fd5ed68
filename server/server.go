package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/aixlab/aix/assistant"
	"github.com/aixlab/aix/entity"
	"github.com/aixlab/aix/errors"
	"github.com/aixlab/aix/feedback"
	"github.com/aixlab/aix/internal/mylog"
)

// Server is the HTTP transport: JSON in, JSON out, all behavior delegated to
// the assistant and feedback services.
type Server struct {
	logger    *mylog.Logger
	assistant *assistant.Service
	feedback  *feedback.Service
}

func New(logger *mylog.Logger, asst *assistant.Service, fb *feedback.Service) *Server {
	return &Server{logger: logger, assistant: asst, feedback: fb}
}

// Handler builds the full middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/query", s.handleQuery).Methods("POST")
	router.HandleFunc("/api/sessions", s.handleListSessions).Methods("GET")
	router.HandleFunc("/api/sessions/{id}/history", s.handleSessionHistory).Methods("GET")
	router.HandleFunc("/api/sessions/{id}", s.handleUpdateSession).Methods("PATCH")
	router.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	router.HandleFunc("/api/feedback", s.handleFeedback).Methods("POST")
	router.HandleFunc("/api/validation/next", s.handleNextValidation).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(true),
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)

	return cors(recovery(handlers.LoggingHandler(os.Stdout, router)))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string `json:"query"`
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrapf(errors.ErrInvalidParams, "malformed request body"))
		return
	}

	answer, err := s.assistant.ProcessQuery(r.Context(), req.SessionID, strings.TrimSpace(req.Query))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{
		"success":    true,
		"session_id": answer.SessionID,
		"response":   answer.Response,
		"steps":      answer.Steps,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.assistant.Sessions().List()
	out := make([]map[string]any, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, map[string]any{
			"id":         sess.ID(),
			"title":      sess.Title(),
			"language":   sess.Language(),
			"created_at": sess.CreatedAt(),
			"updated_at": sess.UpdatedAt(),
			"turns":      sess.Len(),
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.assistant.Sessions().Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := sess.History()
	out := make([]map[string]string, 0, len(entries))
	for _, ent := range entries {
		out = append(out, map[string]string{
			"query":    ent.Query,
			"response": ent.Response,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Title    *string `json:"title"`
		Language *string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrapf(errors.ErrInvalidParams, "malformed request body"))
		return
	}

	if req.Title != nil {
		if err := s.assistant.Sessions().Rename(id, *req.Title); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Language != nil {
		if err := s.assistant.Sessions().SetLanguage(id, *req.Language); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, map[string]any{"success": true})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.assistant.Sessions().Delete(mux.Vars(r)["id"])
	writeJSON(w, map[string]any{"success": true})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID      string `json:"item_id"`
		Kind        string `json:"kind"`
		Explanation string `json:"explanation"`
		Suggestion  string `json:"suggestion"`
		SessionID   string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrapf(errors.ErrInvalidParams, "malformed request body"))
		return
	}

	err := s.feedback.Record(r.Context(), feedback.RecordParams{
		ItemID:      req.ItemID,
		Kind:        entity.FeedbackKind(req.Kind),
		Explanation: req.Explanation,
		Suggestion:  req.Suggestion,
		SessionID:   req.SessionID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

func (s *Server) handleNextValidation(w http.ResponseWriter, r *http.Request) {
	var skipIDs []string
	if skip := r.URL.Query().Get("skip"); skip != "" {
		skipIDs = strings.Split(skip, ",")
	}

	item, err := s.feedback.NextValidationCandidate(r.Context(), skipIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	if item == nil {
		writeJSON(w, map[string]any{"item": nil})
		return
	}
	writeJSON(w, map[string]any{
		"item": map[string]any{
			"id":                item.ID,
			"kind":              item.Kind,
			"content":           item.Content.Data(),
			"validation_status": item.ValidationStatus,
			"last_validated_at": item.LastValidatedAt,
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError maps domain sentinels onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}
