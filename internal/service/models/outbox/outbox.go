package outbox

import (
	"time"
)

// Message is a status-change notification waiting to be published to
// RabbitMQ. Rows are inserted in the same transaction as the order write so
// a transition and its outgoing event commit or roll back together.
type Message struct {
	ID           int64
	ExchangeName string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}
