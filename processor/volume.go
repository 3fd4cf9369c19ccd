package processor

import (
	"fmt"

	"signalflow/models"
)

// VolumeProcessor emits an informational neutral signal when current volume
// runs well above its average. Strength scales with the ratio, saturating at
// three times average.
type VolumeProcessor struct {
	ratioThreshold float64
}

func NewVolumeProcessor(ratioThreshold float64) *VolumeProcessor {
	if ratioThreshold <= 0 {
		ratioThreshold = 1.5
	}
	return &VolumeProcessor{ratioThreshold: ratioThreshold}
}

func (p *VolumeProcessor) Name() string { return "Volume" }

func (p *VolumeProcessor) Process(symbol string, payload *models.SignalPayload, mctx models.MarketContext) *models.Signal {
	if payload == nil {
		return nil
	}
	v := payload.Signals.Volume
	if v == nil || v.Average <= 0 {
		return nil
	}

	ratio := v.Current / v.Average
	if ratio < p.ratioThreshold {
		return nil
	}

	strength := ratio / 3
	if strength > 1 {
		strength = 1
	}

	s := models.NewSignal(symbol, models.SignalNeutral, strength, resolvePrice(mctx, payload, nil),
		fmt.Sprintf("volume %.1fx average", ratio), p.Name(), payload.Indicators, []string{p.Name()})
	return &s
}
