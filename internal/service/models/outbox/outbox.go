package outbox

import "time"

// Message is a fulfillment event stored in the same transaction as the change
// it describes and published to RabbitMQ afterwards.
type Message struct {
	ID           int64
	MessageID    string
	OrderID      int64
	EventType    string
	Exchange     string
	RoutingKey   string
	Payload      []byte
	ContentType  string
	Attempts     int
	MaxAttempts  int
	LastError    string
	CreatedAt    time.Time
	PublishAfter time.Time
}

// Due reports whether the message should be published at now.
func (m Message) Due(now time.Time) bool {
	return m.Attempts < m.MaxAttempts && !m.PublishAfter.After(now)
}

// Retry records a failed publish attempt.
type Retry struct {
	Attempts     int
	LastError    string
	PublishAfter time.Time
}

// Exhausted reports whether no attempts are left after r.
func (r Retry) Exhausted(maxAttempts int) bool {
	return r.Attempts >= maxAttempts
}
