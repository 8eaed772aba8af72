package agent

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's conversation transcript. The system
// message appears exactly once at index 0; user entries are either the
// caller's instruction or a synthetic "Observation: ..." wrapper; assistant
// entries are raw model output.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// EventType tags a stream event.
type EventType string

const (
	EventSession     EventType = "session"
	EventAssistant   EventType = "assistant"
	EventToolCall    EventType = "toolCall"
	EventObservation EventType = "observation"
	EventComplete    EventType = "complete"
	EventError       EventType = "error"
)

// Event is one element of the streaming protocol. The JSON field names are
// part of the external wire contract.
type Event struct {
	Type      EventType         `json:"type"`
	SessionID string            `json:"sessionId,omitempty"`
	Content   string            `json:"content,omitempty"`
	Tool      string            `json:"tool,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

// IsTerminal reports whether the event ends an instruction's stream.
func (e Event) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Result summarizes one completed instruction run.
type Result struct {
	// Final is the terminal event of the run (complete or error).
	Final Event
	// Turns is the number of Reason-Act-Observe cycles consumed.
	Turns int
}
