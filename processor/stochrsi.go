package processor

import (
	"strings"

	"signalflow/models"
)

// StochRSIProcessor emits a buy-side signal when the StochRSI indicator
// reports an active long condition. An oversold status upgrades the type to
// Oversold, which downstream consumers treat as a stronger buy variant.
type StochRSIProcessor struct {
	defaultStrength float64
}

func NewStochRSIProcessor(defaultStrength float64) *StochRSIProcessor {
	if defaultStrength <= 0 {
		defaultStrength = 0.5
	}
	return &StochRSIProcessor{defaultStrength: defaultStrength}
}

func (p *StochRSIProcessor) Name() string { return "StochRSI" }

func (p *StochRSIProcessor) Process(symbol string, payload *models.SignalPayload, mctx models.MarketContext) *models.Signal {
	if payload == nil {
		return nil
	}
	st := payload.Signals.StochRSI
	if st == nil || st.Signal != 1 {
		return nil
	}

	typ := models.SignalBuy
	reason := "StochRSI long condition"
	if strings.EqualFold(st.Status, "oversold") {
		typ = models.SignalOversold
		reason = "StochRSI oversold"
	}

	strength := st.Strength
	if strength <= 0 {
		strength = p.defaultStrength
	}

	s := models.NewSignal(symbol, typ, strength, resolvePrice(mctx, payload, st), reason,
		p.Name(), payload.Indicators, []string{p.Name()})
	return &s
}
