package conversation

import (
	"log/slog"
)

// ScrollSignal asks the view to bring the message at Index into view.
type ScrollSignal struct {
	Index  int
	Smooth bool
}

// Scroller is implemented by the presentation layer to bring the newest message into view.
type Scroller interface {
	ScrollToNewest(sig ScrollSignal)
}

// ScrollCoordinator turns transcript changes into scroll signals. Signals are a UX hint only: when
// no view is attached they are dropped.
type ScrollCoordinator struct {
	scroller Scroller
	logger   *slog.Logger
}

// NewScrollCoordinator returns a coordinator with no view attached.
func NewScrollCoordinator(logger *slog.Logger) *ScrollCoordinator {
	return &ScrollCoordinator{logger: logger}
}

// Attach sets the view that receives scroll signals, replacing any previous one.
func (s *ScrollCoordinator) Attach(sc Scroller) {
	s.scroller = sc
}

// Detach removes the attached view.
func (s *ScrollCoordinator) Detach() {
	s.scroller = nil
}

// OnTranscriptChanged runs after every append and after the batch replace of a history load, once
// all transcript subscribers have seen the change.
func (s *ScrollCoordinator) OnTranscriptChanged(c Change) {
	if c.Len == 0 {
		return
	}
	if s.scroller == nil {
		s.logger.Debug("Scroll signal dropped, no view attached", slog.Int("index", c.Len-1))
		return
	}
	s.scroller.ScrollToNewest(ScrollSignal{
		Index:  c.Len - 1,
		Smooth: true,
	})
}
