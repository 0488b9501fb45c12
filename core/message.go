package core

// Message is the inbound payload delivered to an agent's worker runtime.
type Message struct {
	Type     string            `json:"type"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MessageResponse is the worker's reply to a single message. Success and
// Error are mutually exclusive in practice; Response carries the payload on
// success.
type MessageResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Envelope pairs a message with its correlation id for delivery to a worker.
// The id exists only for the lifetime of one request/response exchange and
// is never persisted.
type Envelope struct {
	MessageID string  `json:"message_id"`
	Message   Message `json:"message"`
}

// ResponseEnvelope pairs a worker reply with the correlation id of the
// message it answers.
type ResponseEnvelope struct {
	MessageID string          `json:"message_id"`
	Response  MessageResponse `json:"response"`
}
