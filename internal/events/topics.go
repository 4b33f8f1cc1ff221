package events

// Topic constants for payment events emitted from provider webhooks.
const (
	TopicPaymentCompleted = "payment.completed"
	TopicPaymentFailed    = "payment.failed"
	TopicPaymentCancelled = "payment.cancelled"
	TopicPaymentRefunded  = "payment.refunded"
)

// DefaultTopics returns the canonical list of topics the bus publishes.
func DefaultTopics() []string {
	return []string{
		TopicPaymentCompleted,
		TopicPaymentFailed,
		TopicPaymentCancelled,
		TopicPaymentRefunded,
	}
}
