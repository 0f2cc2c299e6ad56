package models

import "fmt"

// Message is a single entry of a conversation transcript. A message is never modified after it has
// been appended to a transcript; corrections are made by appending a new message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message authored by the dashboard user, either typed or produced by a
	// quick action.
	RoleUser Role = "user"
	// RoleAssistant represents an answer returned by the conversation service.
	RoleAssistant Role = "assistant"
)

// QuickAction describes a tappable affordance that submits a predetermined canonical trigger
// instead of free text. Label and Description are only shown on the affordance; Trigger is what
// appears in the transcript and what is sent to the conversation service.
type QuickAction struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Trigger     string `yaml:"trigger"`
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Validate checks that a message can be stored in a transcript.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	return nil
}
