package event

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"staffing-backend/internal/model"
)

// mockSender is a mock implementation of the PushSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestPushPool_Publish(t *testing.T) {
	db, _ := newTestDB(t)
	pool := NewPushPool(1, db, &webpush.Options{})

	evt := Event{Type: AssignmentCreated, FacilityID: "fac-1"}
	pool.Publish(evt)

	select {
	case got := <-pool.jobs:
		assert.Equal(t, AssignmentCreated, got.Type)
		assert.Equal(t, "fac-1", got.FacilityID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for event to be queued")
	}
}

func TestPushPool_PublishNeverBlocks(t *testing.T) {
	db, _ := newTestDB(t)
	pool := NewPushPool(1, db, &webpush.Options{})

	// Fill the queue well past its buffer without any worker running; the
	// overflow must be dropped, not block the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			pool.Publish(Event{Type: ShiftsGenerated, FacilityID: "fac-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}

func TestPushPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	pool := NewPushPool(1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	t.Run("sends notification for one subscription", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		subscription := model.PushSubscription{
			Endpoint: "https://example.com/push",
			P256DH:   "test_p256dh",
			Auth:     "test_auth",
		}

		pool.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Contains(t, string(payload), "assignment.created")
				assert.Contains(t, string(payload), "w-1")
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions".*JOIN .*subscription_facility_mapping.*WHERE .*sfm\.facility_id = \$1`).
			WithArgs("fac-1").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow(subscription.Endpoint, subscription.P256DH, subscription.Auth, time.Now()))

		pool.Publish(Event{
			Type:       AssignmentCreated,
			FacilityID: "fac-1",
			Payload:    map[string]any{"worker_id": "w-1", "shift_id": "s-1"},
		})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		subscription := model.PushSubscription{
			Endpoint: "https://example.com/expired",
			P256DH:   "test_p256dh_expired",
			Auth:     "test_auth_expired",
		}

		pool.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions".*JOIN .*subscription_facility_mapping.*WHERE .*sfm\.facility_id = \$1`).
			WithArgs("fac-2").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
				AddRow(subscription.Endpoint, subscription.P256DH, subscription.Auth, time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs(subscription.Endpoint).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		pool.Publish(Event{Type: ShiftCancelled, FacilityID: "fac-2", Payload: map[string]any{"shift_id": "s-9", "date": "2026-09-01"}})

		// A short sleep to allow the worker to process the job
		time.Sleep(100 * time.Millisecond)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEventMessage(t *testing.T) {
	evt := Event{
		Type:    ShiftsGenerated,
		Payload: map[string]any{"generated": 8, "template_id": "tpl-1"},
	}
	assert.Equal(t, "8 new shifts generated from template tpl-1", evt.Message())
}
