package stream

import (
	"encoding/json"
	"strings"

	"github.com/nofendian17/polyinsider/model"
)

// rawFrame carries just the discriminator; everything else is decoded
// lazily once we know which shape to expect.
type rawFrame struct {
	EventType string `json:"event_type"`
}

// tradeFrame is the upstream wire shape for a single trade event. Only
// "trade" frames decode to this shape; book/tick_size_change/last_trade_price
// frames are discarded by the caller before ever reaching here.
type tradeFrame struct {
	EventType    string  `json:"event_type"`
	AssetID      string  `json:"asset_id"`
	Side         string  `json:"side"`
	Outcome      string  `json:"outcome"`
	Price        float64 `json:"price,string"`
	Size         float64 `json:"size,string"`
	TakerAddress string  `json:"taker_address"`
	Timestamp    int64   `json:"timestamp"`
	ID           string  `json:"id"`
}

// parseFrame decodes a raw inbound frame. ok is false for frames that are
// well-formed JSON but not a trade event (heartbeat, book, ack, ...); err
// is non-nil for frames that are not valid JSON and for trade frames whose
// fields fail to decode.
func parseFrame(data []byte) (trade model.Trade, ok bool, err error) {
	var disc rawFrame
	if err := json.Unmarshal(data, &disc); err != nil {
		return model.Trade{}, false, err
	}
	if disc.EventType != "trade" {
		return model.Trade{}, false, nil
	}

	var tf tradeFrame
	if err := json.Unmarshal(data, &tf); err != nil {
		return model.Trade{}, false, err
	}

	side := model.Sell
	if tf.Side == "BUY" || tf.Side == "buy" {
		side = model.Buy
	}
	outcome := model.No
	if tf.Outcome == "YES" || tf.Outcome == "yes" {
		outcome = model.Yes
	}

	return model.Trade{
		AssetID:   tf.AssetID,
		Side:      side,
		Outcome:   outcome,
		Price:     tf.Price,
		Size:      tf.Size,
		Wallet:    strings.ToLower(tf.TakerAddress),
		Timestamp: tf.Timestamp,
		TradeID:   tf.ID,
	}, true, nil
}
