package outbox

import (
	"encoding/json"

	"github.com/md-rashed-zaman/pawwalk/services/booking-service/internal/booking"
)

const AggregateBooking = "booking"

// Event is the envelope written to the outbox table.
// The topic (Kafka) or routing key (RabbitMQ) equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func FromBooking(e booking.Event) (Event, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: AggregateBooking,
		AggregateID:   e.BookingID,
		EventType:     e.Type,
		Payload:       payload,
	}, nil
}
