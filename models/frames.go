package models

import (
	"encoding/json"
	"time"
)

// FrameType identifies the kind of an inbound stream frame.
type FrameType string

const (
	FrameRealTimeUpdate FrameType = "real_time_update"
	FrameSignalUpdate   FrameType = "signal_update"
	FrameMarketData     FrameType = "market_data"
	FramePositionUpdate FrameType = "position_update"
	FrameOrderUpdate    FrameType = "order_update"
)

// RawFrame is one message read off the stream before type-specific decoding.
type RawFrame struct {
	Type     FrameType       `json:"type"`
	Data     json.RawMessage `json:"data"`
	Received time.Time       `json:"-"`
}

// RealTimeUpdate bundles per-ticker signals, prices and open positions.
type RealTimeUpdate struct {
	TickerSignals map[string]SignalPayload `json:"ticker_signals"`
	TickerPrices  map[string]float64       `json:"ticker_prices"`
	Positions     []Position               `json:"positions"`
}

// MarketDataFields is one symbol's partial market snapshot. Pointer fields
// distinguish "absent" from zero so cache merges only touch supplied values.
type MarketDataFields struct {
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price,omitempty"`
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  *float64 `json:"close,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

// MarketDataUpdate accepts both wire shapes: a batch under "updates" or a
// single update at the top level.
type MarketDataUpdate struct {
	Updates []MarketDataFields `json:"updates,omitempty"`
	MarketDataFields
}

// Flatten returns the updates regardless of which wire shape was used.
func (u *MarketDataUpdate) Flatten() []MarketDataFields {
	if len(u.Updates) > 0 {
		return u.Updates
	}
	if u.Symbol != "" {
		return []MarketDataFields{u.MarketDataFields}
	}
	return nil
}

// Position is the last-known state of one open position.
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	MarketValue   float64 `json:"market_value,omitempty"`
	UnrealizedPL  float64 `json:"unrealized_pl,omitempty"`
	UpdatedAt     int64   `json:"updated_at,omitempty"`
}

// DecodePositions accepts either a single position or an array of them.
func DecodePositions(data json.RawMessage) []Position {
	var many []Position
	if err := json.Unmarshal(data, &many); err == nil {
		return many
	}
	var one Position
	if err := json.Unmarshal(data, &one); err == nil && one.Symbol != "" {
		return []Position{one}
	}
	return nil
}

// Order is one fill/acknowledgement event from the order stream.
type Order struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Qty      float64 `json:"qty"`
	Price    float64 `json:"price"`
	Status   string  `json:"status"`
	FilledAt int64   `json:"filled_at,omitempty"`
}

// Candle is the chart payload handed to the visualization sink.
type Candle struct {
	Time   int64   `json:"time"` // unix seconds
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
}
