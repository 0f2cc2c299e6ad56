// Package backend is a reference implementation of the remote conversation service the widget talks
// to. It keeps each user's history in a Store and asks an LLM for every answer.
package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"github.com/MegaGrindStone/dashboard-chat/internal/services"
)

// Answerer produces the assistant reply to a conversation.
type Answerer interface {
	Answer(ctx context.Context, messages []models.Message) (string, error)
}

// Store persists the conversation of every user.
type Store interface {
	History(ctx context.Context, userID string) ([]models.Message, error)
	AddMessage(ctx context.Context, userID string, message models.Message) (string, error)
}

// Service serves the conversation API on /chat.
type Service struct {
	answerer Answerer
	store    Store

	// triggers maps canonical quick-action triggers to the prompt given to the LLM.
	triggers map[string]string

	logger *slog.Logger
}

const errLoggerKey = "err"

// NewService creates a Service. Messages whose content equals a key of triggers are stored as they
// are but shown to the LLM as the mapped prompt.
func NewService(answerer Answerer, store Store, triggers map[string]string, logger *slog.Logger) Service {
	return Service{
		answerer: answerer,
		store:    store,
		triggers: triggers,
		logger:   logger.With(slog.String("module", "backend")),
	}
}

// HandleChat serves GET /chat?user_id= with the stored history and POST /chat with a new message.
func (s Service) HandleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleHistory(w, r)
	case http.MethodPost:
		s.handleSend(w, r)
	default:
		s.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		s.logger.Error("User ID is required")
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	msgs, err := s.store.History(r.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to get history",
			slog.String("userID", userID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, services.HistoryResponse{Messages: msgs})
}

func (s Service) handleSend(w http.ResponseWriter, r *http.Request) {
	var req services.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Error("Failed to decode request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	um := models.Message{Role: models.RoleUser, Content: req.Content}
	if _, err := s.store.AddMessage(r.Context(), req.UserID, um); err != nil {
		s.logger.Error("Failed to add user message",
			slog.String("userID", req.UserID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	history, err := s.store.History(r.Context(), req.UserID)
	if err != nil {
		s.logger.Error("Failed to get history",
			slog.String("userID", req.UserID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	answer, err := s.answerer.Answer(r.Context(), s.expandTriggers(history))
	if err != nil {
		s.logger.Error("Error from llm provider",
			slog.String("userID", req.UserID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, "failed to generate answer", http.StatusBadGateway)
		return
	}

	if answer != "" {
		am := models.Message{Role: models.RoleAssistant, Content: answer}
		if _, err := s.store.AddMessage(r.Context(), req.UserID, am); err != nil {
			s.logger.Error("Failed to add assistant message",
				slog.String("userID", req.UserID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	s.writeJSON(w, services.SendResponse{Answer: answer})
}

func (s Service) expandTriggers(history []models.Message) []models.Message {
	msgs := make([]models.Message, len(history))
	for i, msg := range history {
		if prompt, ok := s.triggers[msg.Content]; ok && msg.Role == models.RoleUser {
			msg.Content = prompt
		}
		msgs[i] = msg
	}
	return msgs
}

func (s Service) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}
