package conversation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MegaGrindStone/dashboard-chat/internal/models"
)

// DefaultQuickActions are the affordances shown on the results dashboard when none are configured.
// Each one carries its own trigger.
func DefaultQuickActions() []models.QuickAction {
	return []models.QuickAction{
		{
			ID:          "review",
			Label:       "Review my results",
			Description: "analyzes the results of the tests and generates reports",
			Trigger:     "give_me_review",
		},
		{
			ID:          "improve_grades",
			Label:       "Improve my grades",
			Description: "provide the ways to improve my grades",
			Trigger:     "improve_my_grades",
		},
	}
}

// ActionDispatcher maps user events to the canonical content that goes through the send path, and
// owns the draft input buffer.
type ActionDispatcher struct {
	actions []models.QuickAction
	byID    map[string]models.QuickAction
	draft   string

	send func(content string) *PendingRequest
}

// NewActionDispatcher validates actions and returns a dispatcher that hands content to send. Two
// actions may share a trigger, but every action must name one.
func NewActionDispatcher(actions []models.QuickAction, send func(string) *PendingRequest) (*ActionDispatcher, error) {
	byID := make(map[string]models.QuickAction, len(actions))
	for i, a := range actions {
		if a.ID == "" {
			return nil, fmt.Errorf("quick action at index %d has no id", i)
		}
		if _, ok := byID[a.ID]; ok {
			return nil, fmt.Errorf("duplicate quick action id %q", a.ID)
		}
		if strings.TrimSpace(a.Trigger) == "" {
			return nil, fmt.Errorf("quick action %q has no trigger", a.ID)
		}
		byID[a.ID] = a
	}

	return &ActionDispatcher{
		actions: slices.Clone(actions),
		byID:    byID,
		send:    send,
	}, nil
}

// QuickActions returns the configured descriptors in display order.
func (d *ActionDispatcher) QuickActions() []models.QuickAction {
	return slices.Clone(d.actions)
}

// SetDraft replaces the input buffer.
func (d *ActionDispatcher) SetDraft(text string) {
	d.draft = text
}

// Draft returns the input buffer.
func (d *ActionDispatcher) Draft() string {
	return d.draft
}

// SubmitFreeText sends text as typed. Blank text is rejected with ErrEmptyMessage before anything
// is appended or sent.
func (d *ActionDispatcher) SubmitFreeText(text string) (*PendingRequest, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	req := d.send(text)
	d.draft = ""
	return req, nil
}

// SubmitDraft submits the input buffer as free text.
func (d *ActionDispatcher) SubmitDraft() (*PendingRequest, error) {
	return d.SubmitFreeText(d.draft)
}

// SubmitQuickAction sends the trigger configured for actionID. Whatever is in the draft is ignored
// and cleared.
func (d *ActionDispatcher) SubmitQuickAction(actionID string) (*PendingRequest, error) {
	a, ok := d.byID[actionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	}
	req := d.send(a.Trigger)
	d.draft = ""
	return req, nil
}
