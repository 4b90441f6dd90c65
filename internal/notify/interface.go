package notify

// Urgency is the sink-level delivery class mapped from a priority.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyNormal   Urgency = "normal"
	UrgencyLow      Urgency = "low"
)

// Notification is the payload handed to every sink. ID is a
// de-duplicating identifier: redelivery of an identical event is
// idempotent at the sink.
type Notification struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Urgency Urgency `json:"urgency"`
	URL     string  `json:"url"`
}

// Sink defines the contract for notification delivery channels.
type Sink interface {
	Name() string
	Emit(notification Notification) error
}
