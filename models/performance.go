package models

import "time"

// SymbolPerformance is the lazily derived rollup for one symbol.
type SymbolPerformance struct {
	TotalSignals int     `json:"total_signals"`
	AvgStrength  float64 `json:"avg_strength"`
	LastSignal   *Signal `json:"last_signal,omitempty"`
}

// PerformanceSnapshot aggregates tracker state at one point in time.
// TotalSignals counts every signal ever tracked; AvgStrength is computed
// over the retained history window.
type PerformanceSnapshot struct {
	TotalSignals int64                        `json:"total_signals"`
	AvgStrength  float64                      `json:"avg_strength"`
	Symbols      map[string]SymbolPerformance `json:"symbols,omitempty"`
}

// ConnectionState names the transport adapter's lifecycle states.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	// StateFailed is terminal: the reconnect attempt cap was exhausted.
	StateFailed ConnectionState = "failed"
)

// ConnectionStatus is the externally visible transport/queue status.
type ConnectionStatus struct {
	State         ConnectionState `json:"state"`
	Connected     bool            `json:"connected"`
	Streaming     bool            `json:"streaming"`
	LastUpdate    time.Time       `json:"last_update"`
	UpdateCount   int64           `json:"update_count"`
	Reconnects    int64           `json:"reconnects"`
	QueueSize     int             `json:"queue_size"`
	ActiveSymbols []string        `json:"active_symbols,omitempty"`
}
