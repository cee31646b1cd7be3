package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/campus-trade/internal/goroutine"
	"github.com/ignatzorin/campus-trade/internal/logger"
	"github.com/ignatzorin/campus-trade/internal/metrics"
)

// Sink получатель событий. Ошибка доставки логируется и не возвращается отправителю.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// Dispatcher асинхронная очередь уведомлений, которую разбирают воркеры.
type Dispatcher struct {
	queue          chan Event
	sinks          []Sink
	workers        int
	deliverTimeout time.Duration
	metrics        *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher создаёт очередь заданного размера.
func NewDispatcher(queueSize, workers int, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:          make(chan Event, queueSize),
		sinks:          sinks,
		workers:        workers,
		deliverTimeout: 5 * time.Second,
		metrics:        m,
	}
}

// Start запускает воркеров. Они работают, пока очередь не закрыта.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		goroutine.SafeGo(func() {
			defer d.wg.Done()
			for event := range d.queue {
				d.deliver(event)
			}
		})
	}
}

// Publish ставит события в очередь без блокировки. При переполнении событие теряется.
func (d *Dispatcher) Publish(_ context.Context, events ...Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, event := range events {
		if d.closed {
			logger.Log.WithField("event_id", event.ID).Warn("outbox: dispatcher closed, event dropped")
			d.metrics.RecordDropped()
			continue
		}
		select {
		case d.queue <- event:
		default:
			logger.Log.WithFields(logrus.Fields{
				"event_id": event.ID,
				"user_id":  event.UserID,
				"template": event.Template,
			}).Warn("outbox: queue is full, event dropped")
			d.metrics.RecordDropped()
		}
	}
}

// Close закрывает очередь и ждёт доставки оставшихся событий.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) deliver(event Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.deliverTimeout)
		err := sink.Deliver(ctx, event)
		cancel()

		d.metrics.RecordDelivery(sink.Name(), err == nil)
		if err != nil {
			logger.Log.WithFields(logrus.Fields{
				"sink":     sink.Name(),
				"event_id": event.ID,
				"user_id":  event.UserID,
				"template": event.Template,
			}).WithError(err).Error("outbox: delivery failed")
		}
	}
}
