package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/juice-vending/internal/domain/outbox"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
	"github.com/Zhima-Mochi/juice-vending/internal/observability/logctx"
)

const (
	componentOutbox    = "outbox"
	defaultQueueSize   = 256
	defaultConcurrency = 4
	handlerTimeout     = 5 * time.Second
)

var ErrBusStopped = errors.New("outbox: bus stopped")

// Bus is an in-process event bus: publishes are queued and fanned out to subscribers
// by a single dispatch goroutine. Events are not persisted.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string][]domoutbox.Handler
	queue       chan domoutbox.Event
	startOnce   sync.Once
	stopOnce    sync.Once
	stopped     bool
	quit        chan struct{}
	publishing  sync.WaitGroup
	done        chan struct{}
	concurrency int
	log         observability.Logger
	published   observability.Counter
}

func NewBus(tel observability.Observability) *Bus {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Bus{
		subs:        make(map[string][]domoutbox.Handler),
		queue:       make(chan domoutbox.Event, defaultQueueSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		concurrency: defaultConcurrency,
		log:         tel.Logger().With(observability.F("component", componentOutbox)),
		published:   tel.Metrics().Counter(observability.MEventsPublished),
	}
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.dispatchLoop(context.WithoutCancel(ctx))
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses new publishes, releases publishers blocked on a full queue, then
// closes the queue and waits until every queued event has been dispatched or ctx
// expires.
func (b *Bus) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		close(b.quit)
		b.mu.Unlock()

		// The queue is closed only once no publisher can still send on it.
		b.publishing.Wait()
		close(b.queue)

		started := true
		b.startOnce.Do(func() { started = false; close(b.done) })
		if started {
			select {
			case <-b.done:
			case <-ctx.Done():
				err = ctx.Err()
			}
		}
		logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
	})
	return err
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))

	b.mu.RLock()
	if b.stopped {
		b.mu.RUnlock()
		b.count(e, "stopped")
		return ErrBusStopped
	}
	b.publishing.Add(1)
	b.mu.RUnlock()
	defer b.publishing.Done()

	select {
	case b.queue <- e:
		b.count(e, "success")
		logger.Debug("event_enqueued")
		return nil
	case <-b.quit:
		b.count(e, "stopped")
		return ErrBusStopped
	case <-ctx.Done():
		b.count(e, "canceled")
		logger.Warn("event_enqueue_aborted", observability.F("error", ctx.Err()))
		return ctx.Err()
	}
}

func (b *Bus) count(e domoutbox.Event, outcome string) {
	b.published.Add(1,
		observability.L("event", e.EventName()),
		observability.L("outcome", outcome),
	)
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for e := range b.queue {
		b.fanout(ctx, e)
	}
}

func (b *Bus) fanout(ctx context.Context, e domoutbox.Event) {
	name := e.EventName()

	b.mu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.mu.RUnlock()

	logger := b.log.With(observability.F("event", name))
	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, handlerTimeout)
			defer cancel()
			if err := h(logctx.With(hctx, logger), e); err != nil {
				logger.Warn("event_handler_error", observability.F("error", err))
			}
		}()
	}

	wg.Wait()
	logger.Debug("event_fanned_out", observability.F("handlers", len(handlers)))
}
