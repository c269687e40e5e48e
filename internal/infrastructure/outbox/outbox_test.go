package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/juice-vending/internal/domain/outbox"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

type recordingCounter struct {
	mu       sync.Mutex
	outcomes []string
}

func (c *recordingCounter) Add(_ float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range labels {
		if l.Key == "outcome" {
			c.outcomes = append(c.outcomes, l.Value)
		}
	}
}

func (c *recordingCounter) Bind(...observability.Label) observability.BoundCounter { return nil }

type counterMetrics struct {
	observability.Metrics
	published *recordingCounter
}

func (m counterMetrics) Counter(name observability.MetricKey) observability.Counter {
	if name == observability.MEventsPublished {
		return m.published
	}
	return m.Metrics.Counter(name)
}

type testTel struct {
	observability.Observability
	metrics observability.Metrics
}

func (t testTel) Metrics() observability.Metrics { return t.metrics }

func TestBusFansOutToEverySubscriber(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	got := map[string]int{}
	var wg sync.WaitGroup
	wg.Add(2)
	handler := func(tag string) domoutbox.Handler {
		return func(_ context.Context, e domoutbox.Event) error {
			mu.Lock()
			got[tag]++
			mu.Unlock()
			wg.Done()
			return nil
		}
	}
	bus.Subscribe("vending.sale_settled", handler("a"))
	bus.Subscribe("vending.sale_settled", handler("b"))
	bus.Subscribe("vending.purchase_cancelled", handler("never"))

	ctx := context.Background()
	bus.Start(ctx)
	if err := bus.Publish(ctx, testEvent{name: "vending.sale_settled"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	wg.Wait()
	if err := bus.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got["a"] != 1 || got["b"] != 1 || got["never"] != 0 {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestBusStopDrainsQueue(t *testing.T) {
	bus := NewBus(nil)
	var mu sync.Mutex
	delivered := 0
	bus.Subscribe("e", func(context.Context, domoutbox.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := bus.Publish(ctx, testEvent{name: "e"}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	bus.Start(ctx)

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := bus.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if delivered != 10 {
		t.Fatalf("delivered = %d, want 10", delivered)
	}
}

func TestBusSurvivesHandlerPanicAndError(t *testing.T) {
	bus := NewBus(nil)
	done := make(chan struct{}, 1)
	bus.Subscribe("e", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("e", func(context.Context, domoutbox.Event) error { return errors.New("handler failed") })
	bus.Subscribe("e", func(context.Context, domoutbox.Event) error {
		done <- struct{}{}
		return nil
	})

	ctx := context.Background()
	bus.Start(ctx)
	defer bus.Stop(ctx)

	if err := bus.Publish(ctx, testEvent{name: "e"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("healthy handler was not called")
	}
}

func TestBusPublishAfterStop(t *testing.T) {
	published := &recordingCounter{}
	tel := testTel{
		Observability: observability.Nop(),
		metrics:       counterMetrics{Metrics: observability.NopMetrics(), published: published},
	}
	bus := NewBus(tel)
	ctx := context.Background()
	bus.Start(ctx)

	if err := bus.Publish(ctx, testEvent{name: "e"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := bus.Publish(ctx, testEvent{name: "e"}); !errors.Is(err, ErrBusStopped) {
		t.Fatalf("expected ErrBusStopped, got %v", err)
	}
	if err := bus.Publish(ctx, nil); err != nil {
		t.Fatalf("nil event should be ignored, got %v", err)
	}

	published.mu.Lock()
	defer published.mu.Unlock()
	want := []string{"success", "stopped"}
	if len(published.outcomes) != len(want) {
		t.Fatalf("outcomes = %v, want %v", published.outcomes, want)
	}
	for i := range want {
		if published.outcomes[i] != want[i] {
			t.Fatalf("outcomes = %v, want %v", published.outcomes, want)
		}
	}
}

func TestBusStopWithoutStart(t *testing.T) {
	bus := NewBus(nil)
	if err := bus.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestBusBlockedPublishDoesNotStallSubscribeOrStop(t *testing.T) {
	bus := NewBus(nil)
	bus.queue = make(chan domoutbox.Event, 1)
	ctx := context.Background()

	if err := bus.Publish(ctx, testEvent{name: "e"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// The queue is full and nothing drains it, so this publish blocks.
	blocked := make(chan error, 1)
	go func() { blocked <- bus.Publish(ctx, testEvent{name: "e"}) }()
	time.Sleep(50 * time.Millisecond)

	subscribed := make(chan struct{})
	go func() {
		bus.Subscribe("e", func(context.Context, domoutbox.Event) error { return nil })
		close(subscribed)
	}()
	select {
	case <-subscribed:
	case <-time.After(time.Second):
		t.Fatal("Subscribe waited on a blocked publisher")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	stopped := make(chan error, 1)
	go func() { stopped <- bus.Stop(stopCtx) }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop waited on a blocked publisher")
	}

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrBusStopped) {
			t.Fatalf("blocked publish returned %v, want ErrBusStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked publisher was not released by Stop")
	}
}
