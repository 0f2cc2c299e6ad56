// Package conversation holds the view-model of the dashboard chat widget: the transcript, the
// synchronization with the remote conversation service, the mapping of user events to outbound
// messages and the scroll signals sent to the view.
//
// Every state change happens on a single event-loop goroutine owned by the ViewModel. Network
// round-trips run concurrently and post their results back to that loop, so the transcript needs no
// locking and a response arriving after Close is never applied.
package conversation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/dashboard-chat/internal/models"
)

const errLoggerKey = "err"

// Config holds what a ViewModel needs to serve one user.
type Config struct {
	UserID  string
	Service Service

	// QuickActions defaults to DefaultQuickActions when nil.
	QuickActions []models.QuickAction
	// RequestTimeout bounds every round-trip. Zero means no timeout.
	RequestTimeout time.Duration

	Logger *slog.Logger
}

// ViewModel owns the transcript of one user's conversation. The presentation layer reads snapshots,
// subscribes to changes and submits events; it never mutates the transcript.
type ViewModel struct {
	userID string

	transcript *Transcript
	sync       *Synchronizer
	dispatcher *ActionDispatcher
	scroll     *ScrollCoordinator

	events  chan func()
	quit    chan struct{}
	stopped chan struct{}
	closed  bool

	logger *slog.Logger
}

// NewViewModel validates cfg and starts the event loop. The transcript starts empty; call
// FetchHistory to populate it.
func NewViewModel(cfg Config) (*ViewModel, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("conversation service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("module", "conversation"), slog.String("userID", cfg.UserID))

	actions := cfg.QuickActions
	if actions == nil {
		actions = DefaultQuickActions()
	}

	v := &ViewModel{
		userID:     cfg.UserID,
		transcript: &Transcript{},
		scroll:     NewScrollCoordinator(logger),
		events:     make(chan func()),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
	v.sync = NewSynchronizer(cfg.Service, v.transcript, v.post, cfg.RequestTimeout, logger)

	dispatcher, err := NewActionDispatcher(actions, func(content string) *PendingRequest {
		return v.sync.SendMessage(v.userID, content)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid quick actions: %w", err)
	}
	v.dispatcher = dispatcher

	// Scroll signals point at messages the views must already hold.
	v.transcript.SetTrailing(v.scroll.OnTranscriptChanged)

	go v.run()

	return v, nil
}

func (v *ViewModel) run() {
	defer close(v.stopped)

	for {
		select {
		case <-v.quit:
			return
		default:
		}

		select {
		case fn := <-v.events:
			fn()
		case <-v.quit:
			return
		}
	}
}

// post schedules fn on the event loop. It reports false once the loop has stopped.
func (v *ViewModel) post(fn func()) bool {
	select {
	case v.events <- fn:
		return true
	case <-v.stopped:
		return false
	}
}

// call runs fn on the event loop and waits for it. It must not be used from the loop itself, which
// includes transcript subscribers and scrollers.
func (v *ViewModel) call(fn func()) error {
	done := make(chan struct{})
	if !v.post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	<-done
	return nil
}

// UserID returns the user the view model serves.
func (v *ViewModel) UserID() string {
	return v.userID
}

// FetchHistory starts the history load.
func (v *ViewModel) FetchHistory() (*Pending[HistoryOutcome], error) {
	var p *Pending[HistoryOutcome]
	if err := v.call(func() { p = v.sync.FetchHistory(v.userID) }); err != nil {
		return nil, err
	}
	return p, nil
}

// SendMessage appends content as a user message and sends it, without the blank check of
// SubmitFreeText. The user message is in the transcript when SendMessage returns.
func (v *ViewModel) SendMessage(content string) (*PendingRequest, error) {
	var req *PendingRequest
	if err := v.call(func() { req = v.sync.SendMessage(v.userID, content) }); err != nil {
		return nil, err
	}
	return req, nil
}

// SubmitFreeText sends text typed by the user and clears the draft.
func (v *ViewModel) SubmitFreeText(text string) (*PendingRequest, error) {
	var (
		req *PendingRequest
		err error
	)
	if callErr := v.call(func() { req, err = v.dispatcher.SubmitFreeText(text) }); callErr != nil {
		return nil, callErr
	}
	return req, err
}

// SubmitDraft sends the current draft as free text.
func (v *ViewModel) SubmitDraft() (*PendingRequest, error) {
	var (
		req *PendingRequest
		err error
	)
	if callErr := v.call(func() { req, err = v.dispatcher.SubmitDraft() }); callErr != nil {
		return nil, callErr
	}
	return req, err
}

// SubmitQuickAction sends the canonical trigger of actionID.
func (v *ViewModel) SubmitQuickAction(actionID string) (*PendingRequest, error) {
	var (
		req *PendingRequest
		err error
	)
	if callErr := v.call(func() { req, err = v.dispatcher.SubmitQuickAction(actionID) }); callErr != nil {
		return nil, callErr
	}
	return req, err
}

// SetDraft replaces the input buffer.
func (v *ViewModel) SetDraft(text string) error {
	return v.call(func() { v.dispatcher.SetDraft(text) })
}

// Draft returns the input buffer, or an empty string after Close.
func (v *ViewModel) Draft() string {
	var draft string
	_ = v.call(func() { draft = v.dispatcher.Draft() })
	return draft
}

// Messages returns a snapshot of the transcript, or nil after Close.
func (v *ViewModel) Messages() []models.Message {
	var msgs []models.Message
	_ = v.call(func() { msgs = v.transcript.Messages() })
	return msgs
}

// QuickActions returns the quick-action descriptors to render as affordances.
func (v *ViewModel) QuickActions() []models.QuickAction {
	return v.dispatcher.QuickActions()
}

// InFlight lists the sends still awaiting their response.
func (v *ViewModel) InFlight() []PendingInfo {
	var infos []PendingInfo
	_ = v.call(func() { infos = v.sync.InFlight() })
	return infos
}

// Subscribe registers fn for every transcript change. fn runs on the event loop and must not call
// back into the ViewModel. The returned function removes the subscription.
func (v *ViewModel) Subscribe(fn func(Change)) (func(), error) {
	var cancel func()
	if err := v.call(func() { cancel = v.transcript.Subscribe(fn) }); err != nil {
		return nil, err
	}
	return func() {
		v.post(cancel)
	}, nil
}

// AttachScroller sets the view that receives scroll signals. Like a subscriber, the scroller runs on
// the event loop.
func (v *ViewModel) AttachScroller(sc Scroller) error {
	return v.call(func() { v.scroll.Attach(sc) })
}

// DetachScroller stops scroll signals until a scroller is attached again.
func (v *ViewModel) DetachScroller() error {
	return v.call(v.scroll.Detach)
}

// Close tears the view model down. In-flight requests are not cancelled, but their responses are
// discarded. Close is idempotent.
func (v *ViewModel) Close() {
	first := false
	if err := v.call(func() {
		first = !v.closed
		v.closed = true
	}); err != nil {
		return
	}
	if !first {
		<-v.stopped
		return
	}
	close(v.quit)
	<-v.stopped
	v.logger.Debug("View model closed")
}
