package repository

// TopicSettlements carries verified settlement events from the webhook
// handler to whichever worker is configured to credit them.
const TopicSettlements = "settlements.verified"

type MessageBus interface {
	Publish(topic string, data []byte) error
}
