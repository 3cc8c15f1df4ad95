// Package stream implements the durable streaming subscription to the
// order-flow feed: dial, subscribe, read frames, and reconnect with
// exponential backoff on any disruption.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn wraps a single websocket connection: dialing, writing the
// subscription frame and reading raw frames. It knows nothing about
// reconnection or backoff — that lives one layer up in Client.
type conn struct {
	url     string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func dial(url string) (*conn, error) {
	header := make(http.Header)
	header.Set("User-Agent", "polyinsider/1.0")

	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &conn{url: url, ws: ws}, nil
}

// subscribeFrame is the single frame sent after connecting, enumerating
// every asset_id the pipeline wants trades for.
type subscribeFrame struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids"`
}

func (c *conn) subscribe(assetIDs []string) error {
	frame := subscribeFrame{Type: "subscribe", AssetsIDs: assetIDs}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal subscribe frame: %w", err)
	}
	return c.writeMessage(data)
}

func (c *conn) writeMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.ws == nil {
		return fmt.Errorf("connection closed")
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// readRawFrame blocks for the next text frame. SetReadDeadline bounds the
// wait: a read that sees no frame before deadline returns an error, which
// is how the caller's idle timeout takes effect.
func (c *conn) readRawFrame(deadline time.Time) ([]byte, error) {
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *conn) close() error {
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}
