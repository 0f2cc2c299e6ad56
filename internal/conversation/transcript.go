package conversation

import (
	"slices"

	"github.com/MegaGrindStone/dashboard-chat/internal/models"
)

// ChangeKind tells observers how the transcript changed.
type ChangeKind string

const (
	// ChangeAppend is fired once per appended message.
	ChangeAppend ChangeKind = "append"
	// ChangeReplace is fired once when the whole transcript is replaced by a history load.
	ChangeReplace ChangeKind = "replace"
)

// Change is the notification delivered to transcript observers.
type Change struct {
	Kind ChangeKind
	// Messages holds the appended message for ChangeAppend, and the complete new transcript for
	// ChangeReplace. The slice is owned by the receiver.
	Messages []models.Message
	// Len is the transcript length after the change.
	Len int
}

type listener struct {
	id int
	fn func(Change)
}

// Transcript is the ordered, append-only sequence of messages that the presentation layer renders.
// It is not safe for concurrent use; the ViewModel only touches it from its event loop.
type Transcript struct {
	messages  []models.Message
	listeners []listener
	nextID    int

	// trailing runs after every listener, whatever the subscription order.
	trailing func(Change)
}

// Append adds msg to the end of the transcript and notifies observers.
func (t *Transcript) Append(msg models.Message) {
	t.messages = append(t.messages, msg)
	t.notify(Change{
		Kind:     ChangeAppend,
		Messages: []models.Message{msg},
		Len:      len(t.messages),
	})
}

// ReplaceAll swaps the whole content for msgs in a single step and fires exactly one ChangeReplace
// notification, never one per message.
func (t *Transcript) ReplaceAll(msgs []models.Message) {
	t.messages = slices.Clone(msgs)
	t.notify(Change{
		Kind:     ChangeReplace,
		Messages: slices.Clone(t.messages),
		Len:      len(t.messages),
	})
}

// Messages returns a copy of the transcript in display order.
func (t *Transcript) Messages() []models.Message {
	return slices.Clone(t.messages)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Subscribe registers fn for every subsequent change. The returned function removes it.
func (t *Transcript) Subscribe(fn func(Change)) func() {
	id := t.nextID
	t.nextID++
	t.listeners = append(t.listeners, listener{id: id, fn: fn})

	return func() {
		t.listeners = slices.DeleteFunc(t.listeners, func(l listener) bool { return l.id == id })
	}
}

// SetTrailing sets fn to run after all subscribers on every change, so it observes a change only
// once every view has applied it.
func (t *Transcript) SetTrailing(fn func(Change)) {
	t.trailing = fn
}

func (t *Transcript) notify(c Change) {
	for _, l := range slices.Clone(t.listeners) {
		l.fn(c)
	}
	if t.trailing != nil {
		t.trailing(c)
	}
}
