// Package eventstream publishes agent turn events to a stream backend.
// Backends live in sub-packages: nop for disabled mode and kafka.
package eventstream

import "context"

// Publisher publishes turn events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnCompletedEvent) error
	Close() error
}

// Provider names accepted in configuration.
const (
	ProviderNop   = "nop"
	ProviderKafka = "kafka"
)
