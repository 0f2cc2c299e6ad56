package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MegaGrindStone/dashboard-chat/internal/conversation"
	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"github.com/tmaxmax/go-sse"
)

type message struct {
	Role    string
	Content template.HTML
}

type homePageData struct {
	PageTitle    string
	UserID       string
	Messages     []message
	QuickActions []models.QuickAction
}

// SSE event types for real-time updates.
var (
	messagesSSEType   = sse.Type("messages")
	transcriptSSEType = sse.Type("transcript")
	scrollSSEType     = sse.Type("scroll")
)

// HandleHome renders the widget with the current transcript of the user given by the "user_id"
// query parameter. The first visit of a user starts the history load; the loaded messages reach the
// page through the SSE stream.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	userID := m.userID(r.URL.Query().Get("user_id"))

	vm, err := m.viewModel(userID)
	if err != nil {
		m.handleViewModelError(w, "Failed to open conversation", userID, err)
		return
	}

	msgs, err := m.renderMessages(vm.Messages())
	if err != nil {
		m.logger.Error("Failed to render messages",
			slog.String("userID", userID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		PageTitle:    m.cfg.PageTitle,
		UserID:       userID,
		Messages:     msgs,
		QuickActions: vm.QuickActions(),
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleChats accepts free text typed by the user through the "message" form field. The message is
// appended to the transcript before the handler returns; the answer follows on the SSE stream.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := m.userID(r.FormValue("user_id"))
	vm, err := m.viewModel(userID)
	if err != nil {
		m.handleViewModelError(w, "Failed to open conversation", userID, err)
		return
	}

	if _, err := vm.SubmitFreeText(r.FormValue("message")); err != nil {
		m.handleViewModelError(w, "Failed to submit message", userID, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleQuickActions submits the quick action named by the "action_id" form field.
func (m Main) HandleQuickActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := m.userID(r.FormValue("user_id"))
	vm, err := m.viewModel(userID)
	if err != nil {
		m.handleViewModelError(w, "Failed to open conversation", userID, err)
		return
	}

	if _, err := vm.SubmitQuickAction(r.FormValue("action_id")); err != nil {
		m.handleViewModelError(w, "Failed to submit quick action", userID, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleSSE streams transcript changes and scroll signals of the user given by "user_id".
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

func (m Main) handleViewModelError(w http.ResponseWriter, msg, userID string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrUnknownAction):
		status = http.StatusNotFound
	case errors.Is(err, conversation.ErrClosed):
		status = http.StatusServiceUnavailable
	}

	m.logger.Error(msg,
		slog.String("userID", userID),
		slog.String(errLoggerKey, err.Error()))
	http.Error(w, err.Error(), status)
}

func (m Main) renderMessages(msgs []models.Message) ([]message, error) {
	res := make([]message, len(msgs))
	for i, msg := range msgs {
		rendered, err := m.renderMessage(msg)
		if err != nil {
			return nil, err
		}
		res[i] = rendered
	}
	return res, nil
}

// renderMessage escapes user messages as plain text and renders assistant answers as markdown.
func (m Main) renderMessage(msg models.Message) (message, error) {
	if msg.Role != models.RoleAssistant {
		return message{
			Role:    string(msg.Role),
			Content: template.HTML(template.HTMLEscapeString(msg.Content)),
		}, nil
	}

	var buf bytes.Buffer
	if err := m.markdown.Convert([]byte(msg.Content), &buf); err != nil {
		return message{}, fmt.Errorf("failed to render markdown: %w", err)
	}
	return message{
		Role:    string(msg.Role),
		Content: template.HTML(buf.String()),
	}, nil
}

// publishChange returns the transcript subscriber of userID. It runs on the view model event loop,
// so it only renders and publishes.
func (m Main) publishChange(userID string) func(conversation.Change) {
	return func(c conversation.Change) {
		// A replace swaps the whole transcript on the page, an append adds to it.
		typ := messagesSSEType
		if c.Kind == conversation.ChangeReplace {
			typ = transcriptSSEType
		}
		msg, err := m.transcriptMessage(typ, c.Messages)
		if err != nil {
			m.logger.Error("Failed to render transcript change",
				slog.String("userID", userID),
				slog.String(errLoggerKey, err.Error()))
			return
		}

		m.logger.Debug("Publish transcript change",
			slog.String("userID", userID),
			slog.String("kind", string(c.Kind)),
			slog.Int("len", c.Len))

		if err := m.sseSrv.Publish(msg, userTopic(userID)); err != nil {
			m.logger.Error("Failed to publish messages",
				slog.String("userID", userID),
				slog.String(errLoggerKey, err.Error()))
		}
	}
}

func (m Main) transcriptMessage(typ sse.EventType, msgs []models.Message) (*sse.Message, error) {
	rendered, err := m.renderMessages(msgs)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "transcript", rendered); err != nil {
		return nil, fmt.Errorf("failed to execute transcript template: %w", err)
	}

	msg := &sse.Message{Type: typ}
	msg.AppendData(sb.String())
	return msg, nil
}

func scrollMessage(sig conversation.ScrollSignal) *sse.Message {
	msg := &sse.Message{Type: scrollSSEType}
	behavior := "auto"
	if sig.Smooth {
		behavior = "smooth"
	}
	msg.AppendData(strconv.Itoa(sig.Index) + " " + behavior)
	return msg
}

// sseScroller forwards scroll signals to the browsers of one user. Only the latest signal is
// replayed to a browser that connects later.
type sseScroller struct {
	m      Main
	userID string
}

func (s sseScroller) ScrollToNewest(sig conversation.ScrollSignal) {
	if err := s.m.sseSrv.Publish(scrollMessage(sig), userTopic(s.userID)); err != nil {
		s.m.logger.Warn("Failed to publish scroll signal",
			slog.String("userID", s.userID),
			slog.String(errLoggerKey, err.Error()))
	}
}
