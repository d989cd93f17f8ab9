package services

import (
	"context"
	"fmt"
	"log"

	"medwaste-backend/internal/events"
	"medwaste-backend/internal/metrics"
	"medwaste-backend/internal/models"

	"golang.org/x/time/rate"
)

// Pusher delivers a push notification to a topic. FCMService implements it.
type Pusher interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error
}

// PickupRequestLister is used to look up the request an event refers to.
type PickupRequestLister interface {
	ListPickupRequests(ctx context.Context) ([]models.PickupRequest, error)
}

const notifierQueueSize = 64

// PickupNotifier pushes a notification to waste handlers whenever a pickup
// request is created. Bus delivery only enqueues; Run does the sending.
type PickupNotifier struct {
	pusher   Pusher
	requests PickupRequestLister
	topic    string
	limiter  *rate.Limiter
	queue    chan string
}

func NewPickupNotifier(pusher Pusher, requests PickupRequestLister, topic string, limiter *rate.Limiter) *PickupNotifier {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &PickupNotifier{
		pusher:   pusher,
		requests: requests,
		topic:    topic,
		limiter:  limiter,
		queue:    make(chan string, notifierQueueSize),
	}
}

// Handle is an events.Handler. It never blocks: when the queue is full the
// notification is dropped.
func (n *PickupNotifier) Handle(ev events.Event) {
	if ev.Type != events.PickupRequestCreated {
		return
	}
	select {
	case n.queue <- ev.EntityID:
	default:
		metrics.PushNotificationsTotal.WithLabelValues("dropped").Inc()
		log.Printf("⚠️  [FCM] Queue full, dropping notification for pickup request %s", ev.EntityID)
	}
}

// Run sends queued notifications until ctx is cancelled.
func (n *PickupNotifier) Run(ctx context.Context) error {
	log.Printf("🔔 Pickup notifier started (topic: %s)", n.topic)
	for {
		select {
		case <-ctx.Done():
			log.Println("🔔 Pickup notifier stopped")
			return nil
		case id := <-n.queue:
			if err := n.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					log.Println("🔔 Pickup notifier stopped")
					return nil
				}
				metrics.PushNotificationsTotal.WithLabelValues("dropped").Inc()
				log.Printf("⚠️  [FCM] Rate limiter refused notification for pickup request %s: %v", id, err)
				continue
			}
			if err := n.notify(ctx, id); err != nil {
				metrics.PushNotificationsTotal.WithLabelValues("error").Inc()
				log.Printf("❌ [FCM] Failed to notify handlers about pickup request %s: %v", id, err)
				continue
			}
			metrics.PushNotificationsTotal.WithLabelValues("sent").Inc()
		}
	}
}

func (n *PickupNotifier) notify(ctx context.Context, requestID string) error {
	requests, err := n.requests.ListPickupRequests(ctx)
	if err != nil {
		return fmt.Errorf("load pickup request: %w", err)
	}

	for _, req := range requests {
		if req.ID != requestID {
			continue
		}
		if !req.Status.Open() {
			// completed before we got to it
			return nil
		}
		return n.pusher.SendToTopic(ctx, n.topic,
			"Pickup Request Created",
			fmt.Sprintf("%s bin at %s is ready for pickup", req.WasteType, req.Location),
			map[string]string{
				"type":              "pickup_request_created",
				"pickup_request_id": req.ID,
				"bin_id":            req.BinID,
				"waste_type":        string(req.WasteType),
			},
		)
	}
	return fmt.Errorf("pickup request %s: %w", requestID, models.ErrRequestNotFound)
}
