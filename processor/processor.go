package processor

import "signalflow/models"

// Processor maps one symbol's raw indicator payload plus market context to
// at most one signal. Implementations are pure and never panic on missing
// sub-fields; absence of the relevant indicator means "no signal".
type Processor interface {
	Name() string
	Process(symbol string, payload *models.SignalPayload, mctx models.MarketContext) *models.Signal
}

// resolvePrice picks the emission price: cached market price first, then the
// payload's own price, then the indicator's, else zero.
func resolvePrice(mctx models.MarketContext, payload *models.SignalPayload, state *models.IndicatorState) float64 {
	if p := mctx.CachedPrice(); p > 0 {
		return p
	}
	if payload != nil && payload.Price > 0 {
		return payload.Price
	}
	if state != nil && state.Price > 0 {
		return state.Price
	}
	return 0
}
