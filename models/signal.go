package models

import (
	"time"

	"github.com/google/uuid"
)

// SignalType is the closed set of trading suggestions a processor can emit.
// Oversold is a buy sub-variant carrying extra context from the StochRSI
// processor; Neutral marks informational signals that carry no direction.
type SignalType string

const (
	SignalBuy      SignalType = "BUY"
	SignalSell     SignalType = "SELL"
	SignalOversold SignalType = "OVERSOLD"
	SignalNeutral  SignalType = "NEUTRAL"
)

// Bullish reports whether the type counts toward the buy side when fusing.
func (t SignalType) Bullish() bool {
	return t == SignalBuy || t == SignalOversold
}

// SignalMetadata carries audit information about how a signal was produced.
type SignalMetadata struct {
	Source           string   `json:"source"`
	Confidence       float64  `json:"confidence"`
	Strategies       []string `json:"strategies"`
	ComponentSignals []string `json:"component_signals,omitempty"`
}

// Signal is a typed, timestamped trading suggestion for one symbol.
// A signal is immutable once constructed; NewSignal copies the indicator
// map and strategy list so callers cannot mutate shared state afterwards.
type Signal struct {
	ID         string                 `json:"id"`
	Timestamp  int64                  `json:"timestamp"` // milliseconds since epoch
	Symbol     string                 `json:"symbol"`
	Type       SignalType             `json:"type"`
	Strength   float64                `json:"strength"` // normalized to [0,1]
	Price      float64                `json:"price"`
	Reason     string                 `json:"reason"`
	Indicators map[string]interface{} `json:"indicators,omitempty"`
	Metadata   SignalMetadata         `json:"metadata"`
}

// NewSignal builds a signal with a fresh id and emission timestamp.
func NewSignal(symbol string, typ SignalType, strength, price float64, reason, source string, indicators map[string]interface{}, strategies []string) Signal {
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}

	return Signal{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UnixMilli(),
		Symbol:     symbol,
		Type:       typ,
		Strength:   strength,
		Price:      price,
		Reason:     reason,
		Indicators: cloneIndicators(indicators),
		Metadata: SignalMetadata{
			Source:     source,
			Confidence: strength,
			Strategies: append([]string(nil), strategies...),
		},
	}
}

func cloneIndicators(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
