package processor

import (
	"strings"

	"signalflow/models"
)

// CompositeProcessor fuses two or more per-indicator signals for one symbol
// into a single directional signal using a majority rule with a confidence
// floor. Ties and weak averages suppress emission: the policy prefers
// precision over recall.
type CompositeProcessor struct {
	minSignals  int
	minStrength float64
}

func NewCompositeProcessor(minSignals int, minStrength float64) *CompositeProcessor {
	if minSignals < 2 {
		minSignals = 2
	}
	if minStrength <= 0 {
		minStrength = 0.6
	}
	return &CompositeProcessor{minSignals: minSignals, minStrength: minStrength}
}

// Fuse returns the composite signal, or nil when the inputs do not carry a
// confident majority.
func (c *CompositeProcessor) Fuse(symbol string, inputs []models.Signal, price float64) *models.Signal {
	if len(inputs) < c.minSignals {
		return nil
	}

	var sum float64
	var buys, sells int
	for i := range inputs {
		sum += inputs[i].Strength
		switch {
		case inputs[i].Type.Bullish():
			buys++
		case inputs[i].Type == models.SignalSell:
			sells++
		}
	}
	avg := sum / float64(len(inputs))

	var typ models.SignalType
	switch {
	case buys > sells && avg > c.minStrength:
		typ = models.SignalBuy
	case sells > buys && avg > c.minStrength:
		typ = models.SignalSell
	default:
		// tie or confidence below the floor
		return nil
	}

	// Shallow union; on key collision the later contributor wins. This is
	// the accepted tie-break, not an accident.
	indicators := make(map[string]interface{})
	reasons := make([]string, 0, len(inputs))
	strategies := make([]string, 0, len(inputs))
	seen := make(map[string]struct{})
	componentIDs := make([]string, 0, len(inputs))

	for i := range inputs {
		in := inputs[i]
		for k, v := range in.Indicators {
			indicators[k] = v
		}
		if in.Reason != "" {
			reasons = append(reasons, in.Reason)
		}
		for _, strat := range in.Metadata.Strategies {
			if _, ok := seen[strat]; ok {
				continue
			}
			seen[strat] = struct{}{}
			strategies = append(strategies, strat)
		}
		componentIDs = append(componentIDs, in.ID)
	}

	if price <= 0 {
		for i := range inputs {
			if inputs[i].Price > 0 {
				price = inputs[i].Price
				break
			}
		}
	}

	s := models.NewSignal(symbol, typ, avg, price, strings.Join(reasons, ", "),
		"Composite", indicators, strategies)
	s.Metadata.ComponentSignals = componentIDs
	return &s
}
