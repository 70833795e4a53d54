package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"staffing-backend/internal/model"
)

// PushSender defines the interface for sending a web push notification.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of PushSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// PushPool is an asynchronous Sink that fans scheduling events out to the
// web-push subscribers of the event's facility. Publishing never blocks:
// when the queue is full the event is dropped and logged, because delivery
// is best-effort and must not hold up an assignment commit.
type PushPool struct {
	size    int
	jobs    chan Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  PushSender
}

// NewPushPool creates a new event delivery pool.
func NewPushPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *PushPool {
	return &PushPool{
		size:    size,
		jobs:    make(chan Event, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (p *PushPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.worker(ctx, i)
	}
}

// Publish implements Sink.
func (p *PushPool) Publish(evt Event) {
	select {
	case p.jobs <- evt:
	default:
		log.Printf("event queue full, dropping %s for facility %s", evt.Type, evt.FacilityID)
	}
}

// Jobs returns the jobs channel for testing.
func (p *PushPool) Jobs() chan Event {
	return p.jobs
}

// worker is the actual worker goroutine.
func (p *PushPool) worker(ctx context.Context, id int) {
	log.Printf("Event worker %d started", id)
	for {
		select {
		case evt := <-p.jobs:
			p.deliver(ctx, evt)
		case <-ctx.Done():
			log.Printf("Event worker %d shutting down", id)
			return
		}
	}
}

// deliver fetches the facility's subscriptions and pushes the event to each.
func (p *PushPool) deliver(ctx context.Context, evt Event) {
	if evt.FacilityID == "" {
		return
	}

	var subscriptions []model.PushSubscription
	err := p.db.WithContext(ctx).
		Joins("JOIN subscription_facility_mapping sfm ON sfm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("sfm.facility_id = ?", evt.FacilityID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for facility %s: %v", evt.FacilityID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(map[string]any{
		"type":    evt.Type,
		"message": evt.Message(),
		"payload": evt.Payload,
	})
	if err != nil {
		log.Printf("Error encoding event %s: %v", evt.Type, err)
		return
	}

	log.Printf("Delivering %s to %d subscribers of facility %s", evt.Type, len(subscriptions), evt.FacilityID)
	for _, sub := range subscriptions {
		p.push(ctx, sub, body)
	}
}

// Message renders a human-readable notification line for the event.
func (evt Event) Message() string {
	switch evt.Type {
	case AssignmentCreated:
		return fmt.Sprintf("Worker %v assigned to shift %v", evt.Payload["worker_id"], evt.Payload["shift_id"])
	case AssignmentRemoved:
		return fmt.Sprintf("Worker %v unassigned from shift %v", evt.Payload["worker_id"], evt.Payload["shift_id"])
	case ShiftsGenerated:
		return fmt.Sprintf("%v new shifts generated from template %v", evt.Payload["generated"], evt.Payload["template_id"])
	case ShiftCancelled:
		return fmt.Sprintf("Shift %v on %v was cancelled", evt.Payload["shift_id"], evt.Payload["date"])
	default:
		return string(evt.Type)
	}
}

// push sends a single web push notification, pruning expired subscriptions.
func (p *PushPool) push(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.sender.Send(payload, wpSub, p.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := p.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
