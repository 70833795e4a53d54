package event

import (
	"log"
	"time"
)

// Type identifies a scheduling event.
type Type string

const (
	AssignmentCreated Type = "assignment.created"
	AssignmentRemoved Type = "assignment.removed"
	ShiftsGenerated   Type = "shifts.generated"
	ShiftCancelled    Type = "shift.cancelled"
)

// Event is a scheduling notification for downstream consumers.
type Event struct {
	Type       Type           `json:"type"`
	FacilityID string         `json:"facility_id"`
	Payload    map[string]any `json:"payload"`
	At         time.Time      `json:"at"`
}

// Sink receives scheduling events for notification and audit. Publish must
// never block the caller and delivery is best-effort: a failed or dropped
// event does not affect the operation that produced it.
type Sink interface {
	Publish(evt Event)
}

// LogSink writes events to the process log. Used when push delivery is not
// configured, and as the fallback in tests.
type LogSink struct{}

func (LogSink) Publish(evt Event) {
	log.Printf("event %s facility=%s payload=%v", evt.Type, evt.FacilityID, evt.Payload)
}
