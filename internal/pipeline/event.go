package pipeline

import "github.com/oselabs/scout/internal/storage"

// EventType tags pipeline events on the wire.
type EventType string

const (
	// EventStatus is a human-readable progress note.
	EventStatus EventType = "status"
	// EventCompany carries one extracted company record.
	EventCompany EventType = "company"
	// EventError reports a failure. Per-page failures are local and the run
	// continues; a fatal failure is followed directly by a done event.
	EventError EventType = "error"
	// EventDone terminates the stream. Exactly one is emitted per run, last.
	EventDone EventType = "done"
)

// Event is one item on a pipeline's output stream.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	// Company is set on company events.
	Company *storage.Company `json:"data,omitempty"`
	// Summary is set on done events.
	Summary *Summary `json:"summary,omitempty"`
}

// Summary totals a finished run.
type Summary struct {
	Companies int `json:"companies"`
	Pages     int `json:"pages"`
	Errors    int `json:"errors"`
}

// Status builds a status event.
func Status(message string) Event {
	return Event{Type: EventStatus, Message: message}
}

// CompanyEvent builds a company event.
func CompanyEvent(c *storage.Company) Event {
	return Event{Type: EventCompany, Company: c}
}

// ErrorEvent builds an error event.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// Done builds the terminal event. The message describes which stage finished.
func Done(message string, s Summary) Event {
	return Event{Type: EventDone, Message: message, Summary: &s}
}
