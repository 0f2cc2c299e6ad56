package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"github.com/google/uuid"
)

// Service is the remote conversation service the Synchronizer talks to.
type Service interface {
	// History returns the stored messages for userID. A nil or empty slice is a valid, empty history.
	History(ctx context.Context, userID string) ([]models.Message, error)
	// Send submits content on behalf of userID and returns the answer. An empty answer means the
	// service had nothing to say.
	Send(ctx context.Context, userID, content string) (string, error)
}

// Pending is the handle of one in-flight round-trip. It resolves exactly once.
type Pending[T any] struct {
	ID string

	done  chan struct{}
	value T
	err   error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{
		ID:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

func (p *Pending[T]) resolve(value T, err error) {
	p.value = value
	p.err = err
	close(p.done)
}

// Done is closed once the round-trip has resolved.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the round-trip resolves or ctx is done. The error is a *NetworkFailure when the
// request failed, or ErrDiscarded when the response arrived after Close.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// HistoryOutcome is the result of a history fetch.
type HistoryOutcome struct {
	// Count is the number of messages loaded into the transcript. Zero means the service returned an
	// empty history.
	Count int
	// Skipped is set when the transcript already held local messages, in which case the history is
	// not applied.
	Skipped bool
}

// SendState is the position of a send in its lifecycle.
type SendState string

// SendState values, in lifecycle order. Replied, NoReply, Failed and Discarded are terminal.
const (
	StateIdle                   SendState = "idle"
	StateOptimisticallyAppended SendState = "optimistically_appended"
	StateAwaitingResponse       SendState = "awaiting_response"
	StateReplied                SendState = "replied"
	StateNoReply                SendState = "no_reply"
	StateFailed                 SendState = "failed"
	StateDiscarded              SendState = "discarded"
)

// Reply is the result of a send.
type Reply struct {
	Outcome SendState
	Answer  string
}

// PendingRequest is one in-flight send.
type PendingRequest struct {
	*Pending[Reply]
	Content string

	state SendState
}

// PendingInfo is a read-only snapshot of an in-flight send.
type PendingInfo struct {
	ID      string
	Content string
	State   SendState
}

// Synchronizer issues history and send requests and merges their results into the transcript. All
// of its methods run on the ViewModel event loop; network round-trips run on their own goroutines
// and hand their result back through post.
type Synchronizer struct {
	svc        Service
	transcript *Transcript
	post       func(func()) bool
	timeout    time.Duration

	inFlight map[string]*PendingRequest

	logger *slog.Logger
}

// NewSynchronizer creates a Synchronizer writing to transcript. post must schedule a function on the
// goroutine that owns transcript, and report false once that goroutine is gone.
func NewSynchronizer(
	svc Service,
	transcript *Transcript,
	post func(func()) bool,
	timeout time.Duration,
	logger *slog.Logger,
) *Synchronizer {
	return &Synchronizer{
		svc:        svc,
		transcript: transcript,
		post:       post,
		timeout:    timeout,
		inFlight:   make(map[string]*PendingRequest),
		logger:     logger,
	}
}

func (s *Synchronizer) requestContext() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

// FetchHistory loads the user's history. Only a non-empty result touches the transcript; failures
// are logged and leave it as it was.
func (s *Synchronizer) FetchHistory(userID string) *Pending[HistoryOutcome] {
	p := newPending[HistoryOutcome]()

	go func() {
		ctx, cancel := s.requestContext()
		defer cancel()

		msgs, err := s.svc.History(ctx, userID)
		if !s.post(func() { s.applyHistory(p, userID, msgs, err) }) {
			s.logger.Debug("History response discarded", slog.String("userID", userID))
			p.resolve(HistoryOutcome{}, ErrDiscarded)
		}
	}()

	return p
}

func (s *Synchronizer) applyHistory(p *Pending[HistoryOutcome], userID string, msgs []models.Message, err error) {
	if err != nil {
		nf := &NetworkFailure{Op: OpHistory, UserID: userID, Err: err}
		s.logger.Error("Failed to fetch history", slog.String(errLoggerKey, nf.Error()))
		p.resolve(HistoryOutcome{}, nf)
		return
	}

	valid := make([]models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			s.logger.Warn("Skipping history message",
				slog.String("message", msg.Content),
				slog.String(errLoggerKey, err.Error()))
			continue
		}
		valid = append(valid, msg)
	}

	if len(valid) == 0 {
		s.logger.Debug("History is empty", slog.String("userID", userID))
		p.resolve(HistoryOutcome{}, nil)
		return
	}

	// Replacing now would drop optimistic messages and shrink the transcript.
	if s.transcript.Len() > 0 {
		s.logger.Warn("History arrived after local messages, keeping local transcript",
			slog.String("userID", userID),
			slog.Int("history", len(valid)),
			slog.Int("local", s.transcript.Len()))
		p.resolve(HistoryOutcome{Skipped: true}, nil)
		return
	}

	s.transcript.ReplaceAll(valid)
	p.resolve(HistoryOutcome{Count: len(valid)}, nil)
}

// SendMessage appends a user message with content and only then dispatches the request, so the user
// message always precedes its answer. The transcript is never rolled back, whatever the outcome.
func (s *Synchronizer) SendMessage(userID, content string) *PendingRequest {
	req := &PendingRequest{
		Pending: newPending[Reply](),
		Content: content,
		state:   StateIdle,
	}

	s.transcript.Append(models.Message{Role: models.RoleUser, Content: content})
	req.state = StateOptimisticallyAppended
	s.inFlight[req.ID] = req

	req.state = StateAwaitingResponse
	go s.roundTrip(userID, req)

	return req
}

func (s *Synchronizer) roundTrip(userID string, req *PendingRequest) {
	ctx, cancel := s.requestContext()
	defer cancel()

	answer, err := s.svc.Send(ctx, userID, req.Content)
	if !s.post(func() { s.applyReply(userID, req, answer, err) }) {
		s.logger.Debug("Send response discarded",
			slog.String("userID", userID),
			slog.String("requestID", req.ID))
		req.resolve(Reply{Outcome: StateDiscarded}, ErrDiscarded)
	}
}

func (s *Synchronizer) applyReply(userID string, req *PendingRequest, answer string, err error) {
	delete(s.inFlight, req.ID)

	if err != nil {
		nf := &NetworkFailure{Op: OpSend, UserID: userID, Err: err}
		s.logger.Error("Failed to send message",
			slog.String("requestID", req.ID),
			slog.String(errLoggerKey, nf.Error()))
		req.state = StateFailed
		req.resolve(Reply{Outcome: StateFailed}, nf)
		return
	}

	if answer == "" {
		s.logger.Debug("Send resolved without answer", slog.String("requestID", req.ID))
		req.state = StateNoReply
		req.resolve(Reply{Outcome: StateNoReply}, nil)
		return
	}

	s.transcript.Append(models.Message{Role: models.RoleAssistant, Content: answer})
	req.state = StateReplied
	req.resolve(Reply{Outcome: StateReplied, Answer: answer}, nil)
}

// InFlight lists the sends still awaiting a response, in no particular order.
func (s *Synchronizer) InFlight() []PendingInfo {
	infos := make([]PendingInfo, 0, len(s.inFlight))
	for _, req := range s.inFlight {
		infos = append(infos, PendingInfo{
			ID:      req.ID,
			Content: req.Content,
			State:   req.state,
		})
	}
	return infos
}
