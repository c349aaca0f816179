package events

// Topic constants for domain events emitted by the storefront.
const (
	TopicOrderFinalized     = "order.finalized"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderRescaled      = "order.rescaled"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderFinalized,
		TopicOrderStatusChanged,
		TopicOrderRescaled,
	}
}
