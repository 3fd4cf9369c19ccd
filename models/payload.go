package models

// IndicatorState is the normalized per-indicator section of a signal payload.
// Servers of different vintages disagree on field placement; Normalize folds
// the legacy flat fields into this shape before processors ever see them.
type IndicatorState struct {
	Signal   int     `json:"signal"`
	Status   string  `json:"status,omitempty"`
	Strength float64 `json:"strength,omitempty"`
	Price    float64 `json:"price,omitempty"`
}

// VolumeState carries the raw volume figures used for the high-volume filter.
type VolumeState struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
}

// IndicatorSet groups the nested per-indicator payloads.
type IndicatorSet struct {
	StochRSI   *IndicatorState `json:"stochrsi,omitempty"`
	EMA        *IndicatorState `json:"ema,omitempty"`
	SuperTrend *IndicatorState `json:"supertrend,omitempty"`
	Volume     *VolumeState    `json:"volume,omitempty"`
}

// SignalPayload is one symbol's raw indicator bundle as sent by the server,
// either inside a real_time_update or as a standalone signal_update.
type SignalPayload struct {
	Symbol     string                 `json:"symbol"`
	Price      float64                `json:"price,omitempty"`
	Confidence float64                `json:"confidence,omitempty"`
	Signals    IndicatorSet           `json:"signals"`
	Indicators map[string]interface{} `json:"indicators,omitempty"`

	// Legacy flat field kept by older server builds instead of
	// signals.supertrend.
	SuperTrendSignal *int `json:"supertrend_signal,omitempty"`
}

// Normalize folds legacy flat fields into the nested indicator set. The
// nested form wins when both are present.
func (p *SignalPayload) Normalize() {
	if p.Signals.SuperTrend == nil && p.SuperTrendSignal != nil {
		p.Signals.SuperTrend = &IndicatorState{Signal: *p.SuperTrendSignal}
	}
	p.SuperTrendSignal = nil
}
