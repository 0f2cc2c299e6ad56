package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	dashboardchat "github.com/MegaGrindStone/dashboard-chat"
	"github.com/MegaGrindStone/dashboard-chat/internal/conversation"
	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
)

// Config holds the presentation settings of the widget.
type Config struct {
	// DefaultUserID is used when a request carries no user_id.
	DefaultUserID string
	PageTitle     string
	// QuickActions defaults to conversation.DefaultQuickActions when nil.
	QuickActions   []models.QuickAction
	RequestTimeout time.Duration
}

// Main serves the chat widget. It keeps one conversation.ViewModel per user and mirrors every
// transcript change and scroll signal to the browser through server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	svc conversation.Service
	cfg Config

	sessions *sessions

	logger *slog.Logger
}

type sessions struct {
	mu     sync.Mutex
	byUser map[string]*conversation.ViewModel
	closed bool
}

const errLoggerKey = "err"

// NewMain creates a new Main backed by the conversation service svc. It parses the templates from
// the embedded filesystem and configures the SSE server so that every client subscribes to the
// topic of its user.
func NewMain(svc conversation.Service, cfg Config, logger *slog.Logger) (Main, error) {
	if cfg.QuickActions == nil {
		cfg.QuickActions = conversation.DefaultQuickActions()
	}
	if _, err := conversation.NewActionDispatcher(cfg.QuickActions, nil); err != nil {
		return Main{}, fmt.Errorf("invalid quick actions: %w", err)
	}
	if cfg.DefaultUserID == "" {
		return Main{}, fmt.Errorf("default user id is required")
	}

	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		dashboardchat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	m := Main{
		templates: tmpl,
		markdown:  newMarkdown(),
		svc:       svc,
		cfg:       cfg,
		sessions:  &sessions{byUser: make(map[string]*conversation.ViewModel)},
		logger:    logger.With(slog.String("module", "handlers")),
	}
	m.sseSrv = &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			userID := m.userID(s.Req.URL.Query().Get("user_id"))

			// Opening the conversation starts its history load when the page was not served first.
			if _, err := m.viewModel(userID); err != nil {
				m.handleViewModelError(s.Res, "Failed to open conversation", userID, err)
				return sse.Subscription{}, false
			}
			// Send the headers now so the browser sees the stream open before the first event.
			if err := s.Flush(); err != nil {
				m.logger.Error("Failed to open event stream",
					slog.String("userID", userID),
					slog.String(errLoggerKey, err.Error()))
				return sse.Subscription{}, false
			}

			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      []string{sse.DefaultTopic, userTopic(userID)},
			}, true
		},
		Provider: &sse.Joe{Replayer: newTranscriptReplayer()},
	}

	return m, nil
}

func userTopic(userID string) string {
	return userTopicPrefix + userID
}

func (m Main) userID(fromRequest string) string {
	if fromRequest == "" {
		return m.cfg.DefaultUserID
	}
	return fromRequest
}

// viewModel returns the view model of userID, creating it and starting its history load on first
// use.
func (m Main) viewModel(userID string) (*conversation.ViewModel, error) {
	m.sessions.mu.Lock()
	defer m.sessions.mu.Unlock()

	if m.sessions.closed {
		return nil, conversation.ErrClosed
	}
	if vm, ok := m.sessions.byUser[userID]; ok {
		return vm, nil
	}

	vm, err := conversation.NewViewModel(conversation.Config{
		UserID:         userID,
		Service:        m.svc,
		QuickActions:   m.cfg.QuickActions,
		RequestTimeout: m.cfg.RequestTimeout,
		Logger:         m.logger,
	})
	if err != nil {
		return nil, err
	}

	if _, err := vm.Subscribe(m.publishChange(userID)); err != nil {
		vm.Close()
		return nil, err
	}
	if err := vm.AttachScroller(sseScroller{m: m, userID: userID}); err != nil {
		vm.Close()
		return nil, err
	}
	if _, err := vm.FetchHistory(); err != nil {
		vm.Close()
		return nil, err
	}

	m.sessions.byUser[userID] = vm
	m.logger.Debug("Conversation opened", slog.String("userID", userID))

	return vm, nil
}

// Shutdown closes every conversation, then broadcasts a close message to all connected clients and
// waits up to 5 seconds for their connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	m.sessions.mu.Lock()
	m.sessions.closed = true
	vms := m.sessions.byUser
	m.sessions.byUser = map[string]*conversation.ViewModel{}
	m.sessions.mu.Unlock()

	for _, vm := range vms {
		vm.Close()
	}

	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
