package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nofendian17/polyinsider/config"
	"github.com/nofendian17/polyinsider/model"
)

// Dispatcher owns the alert queue, dedup table, pacer and sinks. Alerts
// are handed in via Enqueue (non-blocking, matching the pipeline's
// never-block-the-producer discipline) and drained by Run at the
// configured rate, with one goroutine per sink per alert for concurrent,
// independent delivery.
type Dispatcher struct {
	incoming chan model.Alert
	sinks    []Sink
	limiter  *rate.Limiter
	dedup    *dedupTable
	metrics  *Metrics

	mu sync.Mutex
	q  *queue
}

// New builds a Dispatcher against the given sinks and pacing config.
func New(cfg config.DispatchConfig, sinks []Sink) *Dispatcher {
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 1
	}
	return &Dispatcher{
		incoming: make(chan model.Alert, cfg.QueueDepth),
		sinks:    sinks,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		dedup:    newDedupTable(cfg.DedupWindow),
		metrics:  newMetrics(),
		q:        newQueue(cfg.QueueDepth),
	}
}

// Metrics exposes the dispatcher's counters for the health endpoint.
func (d *Dispatcher) Metrics() *Metrics { return d.metrics }

// QueueDepth reports how many alerts are currently queued, for the
// health endpoint's liveness summary.
func (d *Dispatcher) QueueDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.len()
}

// Enqueue hands an alert to the dispatcher without blocking the caller.
// A full incoming buffer drops the alert and counts it, mirroring the
// ingest-side "never block the producer" discipline used throughout.
func (d *Dispatcher) Enqueue(alert model.Alert) {
	select {
	case d.incoming <- alert:
	default:
		d.metrics.incDropped()
		log.Printf("⚠️  Dispatcher incoming buffer full, dropping alert for %s", alert.Trade.AssetID)
	}
}

// Run drives the dispatcher until ctx is cancelled: an acceptor loop feeds
// the bounded queue (so bursts are queued, not dropped) while a separate
// paced loop drains it at the configured rate, independently — acceptance
// never waits on the pacer. On cancellation the paced loop stops using the
// (now-dead) ctx for pacing and switches to draining the backlog against
// a fresh 10s deadline instead, so queued alerts are flushed rather than
// dropped by an already-cancelled rate-limit wait.
func (d *Dispatcher) Run(ctx context.Context) {
	var sendWG sync.WaitGroup
	acceptDone := make(chan struct{})

	go func() {
		defer close(acceptDone)
		for {
			select {
			case <-ctx.Done():
				return
			case alert, ok := <-d.incoming:
				if !ok {
					return
				}
				d.accept(alert)
			}
		}
	}()

	drain := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.drainRemaining(drainCtx, &sendWG)
		sendWG.Wait()
	}

	idle := time.NewTicker(50 * time.Millisecond)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			drain()
			return
		default:
		}

		if d.QueueDepth() == 0 {
			select {
			case <-acceptDone:
				drain()
				return
			case <-idle.C:
				continue
			}
		}
		d.drainOne(ctx, &sendWG)
	}
}

// drainRemaining pops and sends whatever is left in the queue once
// acceptance has stopped, bounded by drainCtx's 10s deadline.
func (d *Dispatcher) drainRemaining(drainCtx context.Context, wg *sync.WaitGroup) {
	for d.QueueDepth() > 0 {
		select {
		case <-drainCtx.Done():
			log.Printf("⚠️  Dispatcher drain deadline hit with %d alerts still queued", d.QueueDepth())
			return
		default:
			d.drainOne(drainCtx, wg)
		}
	}
}

func (d *Dispatcher) accept(alert model.Alert) {
	if d.dedup.seen(dedupKey(alert), time.Now()) {
		d.metrics.incDeduped()
		return
	}

	d.mu.Lock()
	ok := d.q.push(alert)
	d.mu.Unlock()

	if ok {
		d.metrics.incEnqueued()
	} else {
		d.metrics.incDropped()
		log.Printf("⚠️  Dispatcher queue full, dropping alert for %s", alert.Trade.AssetID)
	}
}

// drainOne waits for a pacer token then sends the oldest queued alert to
// every sink concurrently. It returns immediately if the queue is empty.
func (d *Dispatcher) drainOne(ctx context.Context, wg *sync.WaitGroup) {
	d.mu.Lock()
	alert, ok := d.q.pop()
	d.mu.Unlock()
	if !ok {
		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.mu.Lock()
		d.q.pushFront(alert)
		d.mu.Unlock()
		return
	}

	for _, sink := range d.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Send(sendCtx, alert); err != nil {
				d.metrics.incSinkFailure(s.Name())
				log.Printf("❌ %s delivery failed for %s: %v", s.Name(), alert.Trade.AssetID, err)
				return
			}
			d.metrics.incDelivered()
		}(sink)
	}
}
