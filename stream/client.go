package stream

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nofendian17/polyinsider/model"
)

// State is a position in the streaming client's connection state machine.
type State int32

const (
	Disconnected State = iota
	Connecting
	Subscribing
	Streaming
	Backoff
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Subscribing:
		return "SUBSCRIBING"
	case Streaming:
		return "STREAMING"
	case Backoff:
		return "BACKOFF"
	default:
		return "UNKNOWN"
	}
}

const (
	idleTimeout       = 30 * time.Second
	subscribeGrace    = 5 * time.Second
	backoffBase       = 1 * time.Second
	backoffMax        = 60 * time.Second
	sustainedStreamOK = 60 * time.Second
)

// Client drives the DISCONNECTED -> CONNECTING -> SUBSCRIBING -> STREAMING
// -> (BACKOFF -> CONNECTING) state machine described for the ingestion
// pipeline. It owns reconnection and backoff; callers only read Trades()
// and State().
type Client struct {
	url      string
	assetIDs func() []string

	state atomic.Int32

	trades chan model.Trade

	mu   sync.Mutex
	conn *conn
}

// NewClient builds a streaming client against url. assetIDs is called each
// time a subscription frame is sent, so a catalog refresh is picked up on
// the next reconnect without restarting the client.
func NewClient(url string, assetIDs func() []string, bufferSize int) *Client {
	c := &Client{
		url:      url,
		assetIDs: assetIDs,
		trades:   make(chan model.Trade, bufferSize),
	}
	c.state.Store(int32(Disconnected))
	return c
}

// Trades returns the channel trades are emitted on, in the order received.
func (c *Client) Trades() <-chan model.Trade { return c.trades }

// State returns the client's current position in the connection state
// machine, safe to call from any goroutine (used by the health endpoint).
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// Run drives the client until ctx is cancelled. It never returns an error:
// every failure is handled internally via the BACKOFF state, matching the
// donor's readAndProcessMessages reconnect loop generalized to a full
// state machine.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setState(Disconnected)
			return
		}

		streamedFor, err := c.runOnce(ctx)
		if ctx.Err() != nil {
			c.setState(Disconnected)
			return
		}
		if err == nil {
			// runOnce only returns nil error on ctx cancellation, handled above.
			continue
		}

		if streamedFor >= sustainedStreamOK {
			attempt = 0
		}

		delay := backoffBase << attempt
		if delay > backoffMax || delay <= 0 {
			delay = backoffMax
		}
		attempt++

		c.setState(Backoff)
		log.Printf("🔌 Stream disrupted (%v), reconnecting in %v", err, delay)

		select {
		case <-ctx.Done():
			c.setState(Disconnected)
			return
		case <-time.After(delay):
		}
	}
}

// runOnce performs a single connect-subscribe-stream cycle, returning how
// long it stayed in STREAMING and the error that ended the cycle.
func (c *Client) runOnce(ctx context.Context) (time.Duration, error) {
	c.setState(Connecting)
	cn, err := dial(c.url)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.conn = cn
	c.mu.Unlock()
	defer cn.close()

	c.setState(Subscribing)
	if err := cn.subscribe(c.assetIDs()); err != nil {
		return 0, err
	}

	var entered atomic.Bool
	var streamStart atomic.Int64
	streamStart.Store(time.Now().UnixNano())

	// The SUBSCRIBING -> STREAMING transition fires on whichever happens
	// first: the first frame read below, or this grace timer. A blocking
	// read alone can't observe the grace deadline while it's in flight, so
	// the timer runs independently on its own goroutine.
	markStreaming := func() {
		if entered.CompareAndSwap(false, true) {
			streamStart.Store(time.Now().UnixNano())
			c.setState(Streaming)
		}
	}
	graceTimer := time.AfterFunc(subscribeGrace, markStreaming)
	defer graceTimer.Stop()

	for {
		if ctx.Err() != nil {
			return time.Since(time.Unix(0, streamStart.Load())), nil
		}

		readDeadline := time.Now().Add(idleTimeout)
		data, err := cn.readRawFrame(readDeadline)
		if err != nil {
			return time.Since(time.Unix(0, streamStart.Load())), err
		}

		markStreaming()

		trade, ok, perr := parseFrame(data)
		if perr != nil {
			log.Printf("⚠️  Malformed stream frame, skipping: %v", perr)
			continue
		}
		if !ok {
			continue // heartbeat, book, ack, or other non-trade frame
		}

		select {
		case c.trades <- trade:
		default:
			// Channel full: drop the oldest pending trade to make room.
			select {
			case old := <-c.trades:
				log.Printf("⚠️  Trade channel full, dropping oldest trade %s for %s", old.TradeID, old.AssetID)
			default:
			}
			select {
			case c.trades <- trade:
			default:
				log.Printf("⚠️  Trade channel full, dropping trade %s for %s", trade.TradeID, trade.AssetID)
			}
		}
	}
}
