// Package llm holds the provider-neutral message model and the client
// contract used by the agent loop. Provider wire formats live under
// pkg/llm/provider.
package llm

import "context"

// Client sends chat requests to a hosted model.
type Client interface {
	// Chat issues a single blocking request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream issues a streaming request. See Stream for the iteration contract.
	Stream(ctx context.Context, req *ChatRequest) (Stream, error)
}
