package processor

import "signalflow/models"

// SuperTrendProcessor maps the SuperTrend direction flip to a directional
// signal: 1 is a buy, -1 a sell, anything else is no signal. Legacy flat
// payloads are folded into the nested form before reaching this processor.
type SuperTrendProcessor struct {
	defaultStrength float64
}

func NewSuperTrendProcessor(defaultStrength float64) *SuperTrendProcessor {
	if defaultStrength <= 0 {
		defaultStrength = 0.5
	}
	return &SuperTrendProcessor{defaultStrength: defaultStrength}
}

func (p *SuperTrendProcessor) Name() string { return "SuperTrend" }

func (p *SuperTrendProcessor) Process(symbol string, payload *models.SignalPayload, mctx models.MarketContext) *models.Signal {
	if payload == nil {
		return nil
	}
	st := payload.Signals.SuperTrend
	if st == nil {
		return nil
	}

	var typ models.SignalType
	var reason string
	switch st.Signal {
	case 1:
		typ = models.SignalBuy
		reason = "SuperTrend flipped bullish"
	case -1:
		typ = models.SignalSell
		reason = "SuperTrend flipped bearish"
	default:
		return nil
	}

	strength := st.Strength
	if strength <= 0 {
		strength = p.defaultStrength
	}

	s := models.NewSignal(symbol, typ, strength, resolvePrice(mctx, payload, st), reason,
		p.Name(), payload.Indicators, []string{p.Name()})
	return &s
}
