package channel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pointspay/internal/repository"
)

func TestPublish_DeliversToEventsChannel(t *testing.T) {
	bus := NewBus(4)

	require.NoError(t, bus.Publish(repository.TopicSettlements, []byte("one")))
	require.NoError(t, bus.Publish(repository.TopicSettlements, []byte("two")))

	require.Equal(t, []byte("one"), <-bus.Events())
	require.Equal(t, []byte("two"), <-bus.Events())
}

func TestPublish_RejectsUnknownTopic(t *testing.T) {
	bus := NewBus(4)

	err := bus.Publish("somewhere.else", []byte("x"))

	require.Error(t, err)
	require.Empty(t, bus.Events())
}

func TestPublish_FullBufferErrorsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(1)

	require.NoError(t, bus.Publish(repository.TopicSettlements, []byte("one")))

	err := bus.Publish(repository.TopicSettlements, []byte("two"))
	require.Error(t, err, "full buffer must surface to the webhook so the gateway redelivers")
}
