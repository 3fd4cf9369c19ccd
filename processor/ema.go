package processor

import "signalflow/models"

// EMAProcessor emits a buy signal on an active bullish EMA crossover.
type EMAProcessor struct {
	defaultStrength float64
}

func NewEMAProcessor(defaultStrength float64) *EMAProcessor {
	if defaultStrength <= 0 {
		defaultStrength = 0.5
	}
	return &EMAProcessor{defaultStrength: defaultStrength}
}

func (p *EMAProcessor) Name() string { return "EMA" }

func (p *EMAProcessor) Process(symbol string, payload *models.SignalPayload, mctx models.MarketContext) *models.Signal {
	if payload == nil {
		return nil
	}
	st := payload.Signals.EMA
	if st == nil || st.Signal != 1 {
		return nil
	}

	strength := st.Strength
	if strength <= 0 {
		strength = p.defaultStrength
	}

	s := models.NewSignal(symbol, models.SignalBuy, strength, resolvePrice(mctx, payload, st),
		"EMA bullish crossover", p.Name(), payload.Indicators, []string{p.Name()})
	return &s
}
