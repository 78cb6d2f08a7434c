package llm

// StreamEvent is one incremental event of a streaming response.
// Only text deltas are surfaced; tool input is assembled internally and
// delivered with the final response.
type StreamEvent struct {
	// Index of the content block the delta belongs to.
	Index int `json:"index"`

	// Text is the incremental text.
	Text string `json:"text"`
}

// Stream is a cancellable iterator over a streaming response.
//
// Next blocks until the next text delta is available and returns nil, nil
// once the stream is complete. After that Response returns the final
// assembled response, which has the same shape as a non-streaming one.
// Cancelling the context passed to Client.Stream ends the stream with the
// context's error. Close must always be called.
type Stream interface {
	Next() (*StreamEvent, error)
	Response() *ChatResponse
	Close() error
}
