package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/tether/pkg/config"
	"github.com/papercomputeco/tether/pkg/eventstream"
	"github.com/papercomputeco/tether/pkg/eventstream/kafka"
	"github.com/papercomputeco/tether/pkg/eventstream/nop"
)

// newPublisher selects the turn event publisher named by the config.
func newPublisher(c config.EventStreamConfig, logger *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", eventstream.ProviderNop:
		return nop.NewPublisher(), nil

	case eventstream.ProviderKafka:
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: splitBrokers(c.Brokers),
			Topic:   c.Topic,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		return publisher, nil

	default:
		return nil, fmt.Errorf("unsupported eventstream provider %q (available: %s, %s)",
			c.Provider, eventstream.ProviderNop, eventstream.ProviderKafka)
	}
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
