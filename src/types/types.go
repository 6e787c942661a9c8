package types

import "time"

// Route selectors. Connect and disconnect are transport-level events; the
// only client-initiated application selector is ActionSendMessage.
const (
	ActionSendMessage = "sendmessage"
)

// Push status markers.
const (
	StatusProcessing     = "processing"
	StatusSearchComplete = "search_complete"
	StatusNoResults      = "no_results"
	StatusSearchError    = "search_error"
	StatusError          = "error"
)

// RequestFrame is a client-to-server message. Action selects the handler;
// the rest of the payload is interpreted by that handler. RequestID is an
// optional client-supplied correlation token echoed back on every push
// produced for this frame.
type RequestFrame struct {
	Action    string `json:"action"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ResponseFrame is a server-to-client push. Fields are populated per frame
// kind; clients are expected to be lenient about absent fields.
type ResponseFrame struct {
	ConnectionID string         `json:"connectionId,omitempty"`
	Status       string         `json:"status,omitempty"`
	Message      string         `json:"message,omitempty"`
	Response     string         `json:"response,omitempty"`
	Query        string         `json:"query,omitempty"`
	Results      []SearchResult `json:"results,omitempty"`
	TotalResults int            `json:"total_results,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
}

// Sentiment is the classifier output attached to an indexed document.
type Sentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SearchResult is one formatted hit from the search pipeline.
type SearchResult struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Content   string    `json:"content,omitempty"`
	Score     float64   `json:"score"`
	Sentiment Sentiment `json:"sentiment"`
	Category  string    `json:"category"`
}

// ConnectionRecord is the registry entry for one live client session.
type ConnectionRecord struct {
	ConnectionID string    `json:"connection_id"`
	ConnectedAt  time.Time `json:"connected_at"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}
