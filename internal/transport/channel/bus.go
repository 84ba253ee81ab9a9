package channel

import (
	"fmt"

	"pointspay/internal/repository"
)

// Bus is the in-process bus provider: a buffered channel standing in for
// NATS in single-binary deployments and tests. Publish never blocks; a full
// buffer is reported as an error so the webhook returns non-2xx and the
// gateway redelivers.
type Bus struct {
	events chan []byte
}

func NewBus(bufferSize int) *Bus {
	return &Bus{events: make(chan []byte, bufferSize)}
}

func (b *Bus) Publish(topic string, data []byte) error {
	if topic != repository.TopicSettlements {
		return fmt.Errorf("channel bus: unknown topic %q", topic)
	}
	select {
	case b.events <- data:
		return nil
	default:
		return fmt.Errorf("channel bus: buffer full (%d events)", cap(b.events))
	}
}

// Events exposes the queue to the channel worker.
func (b *Bus) Events() <-chan []byte {
	return b.events
}
