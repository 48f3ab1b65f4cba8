package chat

// DeltaFrame carries one content delta to the client.
type DeltaFrame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// DoneFrame terminates a successful turn. FullResponse equals the
// concatenation of every DeltaFrame content sent before it.
type DoneFrame struct {
	Content      string `json:"content"`
	Done         bool   `json:"done"`
	SessionID    string `json:"sessionId"`
	MessageCount int    `json:"messageCount"`
	MessageLimit int    `json:"messageLimit"`
	FullResponse string `json:"fullResponse"`
}

// ErrorFrame terminates a failed turn.
type ErrorFrame struct {
	Error string `json:"error"`
	Done  bool   `json:"done"`
}
