package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"medwaste-backend/internal/events"
	"medwaste-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type pushed struct {
	topic string
	title string
	body  string
	data  map[string]string
}

type fakePusher struct {
	mu   sync.Mutex
	sent []pushed
}

func (p *fakePusher) SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, pushed{topic: topic, title: title, body: body, data: data})
	return nil
}

func (p *fakePusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestPickupNotifier_NotifiesOnCreate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	st := store.NewMemoryStore(sharpsBin(35))
	svc := NewWasteService(st, bus)

	pusher := &fakePusher{}
	notifier := NewPickupNotifier(pusher, svc, "waste_handlers", nil)
	bus.Subscribe(notifier.Handle)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = notifier.Run(ctx)
	}()

	// below threshold: no request, no push
	_, err := svc.RecordDisposal(ctx, sharpsDisposal(1))
	require.NoError(t, err)
	// crosses threshold
	entry, err := svc.RecordDisposal(ctx, sharpsDisposal(5))
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.Eventually(t, func() bool { return pusher.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	msg := pusher.sent[0]
	assert.Equal(t, "waste_handlers", msg.topic)
	assert.Equal(t, "Pickup Request Created", msg.title)
	assert.Equal(t, "bin-icu", msg.data["bin_id"])
	assert.Contains(t, msg.body, "ICU - Ward 3")
}

func TestPickupNotifier_IgnoresOtherEvents(t *testing.T) {
	notifier := NewPickupNotifier(&fakePusher{}, store.NewMemoryStore(), "t", nil)

	notifier.Handle(events.Event{Type: events.BinChanged, EntityID: "b"})
	notifier.Handle(events.Event{Type: events.PickupRequestCompleted, EntityID: "r"})

	assert.Len(t, notifier.queue, 0)
}

func TestPickupNotifier_DropsWhenFull(t *testing.T) {
	notifier := NewPickupNotifier(&fakePusher{}, store.NewMemoryStore(), "t", nil)

	for i := 0; i < notifierQueueSize+10; i++ {
		notifier.Handle(events.Event{Type: events.PickupRequestCreated, EntityID: "r"})
	}
	assert.Len(t, notifier.queue, notifierQueueSize)
}

func TestPickupNotifier_KeepsRunningWhenLimiterRefuses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, _ := newTestService(t, store.NewMemoryStore(sharpsBin(45)))
	req, err := svc.CreatePickupRequest(ctx, "bin-icu")
	require.NoError(t, err)

	// one token, never refilled: every send after the first is refused
	pusher := &fakePusher{}
	notifier := NewPickupNotifier(pusher, svc, "t", rate.NewLimiter(0, 1))
	for i := 0; i < 3; i++ {
		notifier.Handle(events.Event{Type: events.PickupRequestCreated, EntityID: req.ID})
	}

	done := make(chan error, 1)
	go func() { done <- notifier.Run(ctx) }()

	require.Eventually(t, func() bool { return len(notifier.queue) == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, pusher.count())

	select {
	case err := <-done:
		t.Fatalf("Run returned before cancellation: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	// still consuming
	notifier.Handle(events.Event{Type: events.PickupRequestCreated, EntityID: req.ID})
	require.Eventually(t, func() bool { return len(notifier.queue) == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
