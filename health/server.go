// Package health exposes a minimal operational HTTP surface: liveness and
// counters only, grounded in the donor's api.Server/realtime.Broker shape
// but with every database-backed concern stripped — this is observability,
// not a historical-query API.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nofendian17/polyinsider/dispatch"
	"github.com/nofendian17/polyinsider/stream"
)

// StreamState is the minimal view the health endpoint needs of the
// streaming client, satisfied by *stream.Client.
type StreamState interface {
	State() stream.State
}

// Counters is the minimal view of ingestion-side counters the /metrics
// endpoint reports alongside the dispatcher's own.
type Counters struct {
	TradesReceived int64
	TradesFiltered map[string]int64 // by filter stage name
	SignalsFired   map[string]int64 // by signal kind
}

// Server serves GET /healthz and GET /metrics on addr.
type Server struct {
	addr       string
	streamer   StreamState
	dispatcher *dispatch.Dispatcher
	counters   func() Counters
	httpServer *http.Server
}

// New builds a health server. counters is called on every /metrics
// request to get a fresh snapshot; it must be safe to call concurrently.
func New(addr string, streamer StreamState, dispatcher *dispatch.Dispatcher, counters func() Counters) *Server {
	s := &Server{addr: addr, streamer: streamer, dispatcher: dispatcher, counters: counters}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/metrics", s.handleMetrics)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.addr == "" {
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type healthzResponse struct {
	Status      string `json:"status"`
	StreamState string `json:"stream_state"`
	QueueDepth  int    `json:"queue_depth"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{Status: "ok"}
	if s.streamer != nil {
		resp.StreamState = s.streamer.State().String()
	}
	if s.dispatcher != nil {
		resp.QueueDepth = s.dispatcher.QueueDepth()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if s.counters != nil {
		c := s.counters()
		fmt.Fprintf(w, "trades_received %d\n", c.TradesReceived)
		for stage, n := range c.TradesFiltered {
			fmt.Fprintf(w, "trades_filtered{stage=%q} %d\n", stage, n)
		}
		for kind, n := range c.SignalsFired {
			fmt.Fprintf(w, "signals_fired{kind=%q} %d\n", kind, n)
		}
	}

	if s.dispatcher != nil {
		m := s.dispatcher.Metrics().Snapshot()
		fmt.Fprintf(w, "alerts_enqueued %d\n", m.AlertsEnqueued)
		fmt.Fprintf(w, "alerts_dropped %d\n", m.AlertsDropped)
		fmt.Fprintf(w, "alerts_deduped %d\n", m.AlertsDeduped)
		fmt.Fprintf(w, "alerts_delivered %d\n", m.AlertsDelivered)
		for sink, n := range m.SinkFailures {
			fmt.Fprintf(w, "sink_delivery_failures{sink=%q} %d\n", sink, n)
		}
	}
}
