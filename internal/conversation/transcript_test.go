package conversation

import (
	"testing"

	"github.com/MegaGrindStone/dashboard-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptAppend(t *testing.T) {
	var tr Transcript
	var changes []Change
	tr.Subscribe(func(c Change) { changes = append(changes, c) })

	tr.Append(models.Message{Role: models.RoleUser, Content: "hello"})
	tr.Append(models.Message{Role: models.RoleAssistant, Content: "hi"})

	require.Len(t, changes, 2)
	assert.Equal(t, Change{
		Kind:     ChangeAppend,
		Messages: []models.Message{{Role: models.RoleAssistant, Content: "hi"}},
		Len:      2,
	}, changes[1])
	assert.Equal(t, 2, tr.Len())
}

func TestTranscriptMessagesIsACopy(t *testing.T) {
	var tr Transcript
	tr.Append(models.Message{Role: models.RoleUser, Content: "hello"})

	msgs := tr.Messages()
	msgs[0].Content = "changed"

	assert.Equal(t, "hello", tr.Messages()[0].Content)
}

func TestTranscriptReplaceAll(t *testing.T) {
	var tr Transcript
	tr.Append(models.Message{Role: models.RoleUser, Content: "stale"})

	var changes []Change
	tr.Subscribe(func(c Change) {
		// Observers only ever see the finished replacement.
		assert.Equal(t, 3, tr.Len())
		changes = append(changes, c)
	})

	history := []models.Message{
		{Role: models.RoleUser, Content: "a"},
		{Role: models.RoleAssistant, Content: "b"},
		{Role: models.RoleUser, Content: "c"},
	}
	tr.ReplaceAll(history)
	history[0].Content = "mutated by caller"

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeReplace, changes[0].Kind)
	assert.Equal(t, 3, changes[0].Len)
	assert.Equal(t, "a", tr.Messages()[0].Content)
}

func TestTranscriptUnsubscribe(t *testing.T) {
	var tr Transcript
	var a, b int
	cancelA := tr.Subscribe(func(Change) { a++ })
	tr.Subscribe(func(Change) { b++ })

	tr.Append(models.Message{Role: models.RoleUser, Content: "1"})
	cancelA()
	tr.Append(models.Message{Role: models.RoleUser, Content: "2"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func TestTranscriptTrailingRunsLast(t *testing.T) {
	var tr Transcript
	var order []string
	tr.SetTrailing(func(Change) { order = append(order, "trailing") })
	tr.Subscribe(func(Change) { order = append(order, "first") })
	tr.Subscribe(func(Change) { order = append(order, "second") })

	tr.Append(models.Message{Role: models.RoleUser, Content: "1"})
	tr.ReplaceAll([]models.Message{{Role: models.RoleUser, Content: "a"}})

	assert.Equal(t, []string{"first", "second", "trailing", "first", "second", "trailing"}, order)
}

func TestNewActionDispatcher(t *testing.T) {
	send := func(string) *PendingRequest { return nil }

	tests := []struct {
		name    string
		actions []models.QuickAction
		wantErr bool
	}{
		{name: "Defaults", actions: DefaultQuickActions()},
		{name: "None", actions: nil},
		{
			name: "Shared trigger",
			actions: []models.QuickAction{
				{ID: "a", Trigger: "give_me_review"},
				{ID: "b", Trigger: "give_me_review"},
			},
		},
		{name: "Missing id", actions: []models.QuickAction{{Trigger: "x"}}, wantErr: true},
		{name: "Blank trigger", actions: []models.QuickAction{{ID: "a", Trigger: " "}}, wantErr: true},
		{
			name: "Duplicate id",
			actions: []models.QuickAction{
				{ID: "a", Trigger: "x"},
				{ID: "a", Trigger: "y"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewActionDispatcher(tt.actions, send)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, d.QuickActions(), len(tt.actions))
		})
	}
}

func TestScrollCoordinatorWithoutView(t *testing.T) {
	s := NewScrollCoordinator(discardLogger())
	assert.NotPanics(t, func() {
		s.OnTranscriptChanged(Change{Kind: ChangeAppend, Len: 1})
	})
}
