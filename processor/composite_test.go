package processor

import (
	"math"
	"strings"
	"testing"

	"signalflow/models"
)

func makeSignal(typ models.SignalType, strength float64, source string, indicators map[string]interface{}) models.Signal {
	return models.NewSignal("AAPL", typ, strength, 100, source+" fired", source, indicators, []string{source})
}

func TestCompositeRequiresMinimumInputs(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{makeSignal(models.SignalBuy, 0.9, "EMA", nil)}

	if got := c.Fuse("AAPL", inputs, 100); got != nil {
		t.Fatalf("single input must not fuse, got %+v", got)
	}
}

func TestCompositeBullishMajority(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{
		makeSignal(models.SignalBuy, 0.7, "EMA", nil),
		makeSignal(models.SignalOversold, 0.8, "StochRSI", nil),
		makeSignal(models.SignalSell, 0.6, "SuperTrend", nil),
	}

	got := c.Fuse("AAPL", inputs, 100)
	if got == nil {
		t.Fatalf("expected composite signal")
	}
	if got.Type != models.SignalBuy {
		t.Fatalf("two bullish vs one sell should buy, got %s", got.Type)
	}
	if math.Abs(got.Strength-0.7) > 1e-9 {
		t.Fatalf("expected avg strength 0.7, got %v", got.Strength)
	}
	if got.Metadata.Source != "Composite" {
		t.Fatalf("unexpected source %s", got.Metadata.Source)
	}
}

func TestCompositeWeakAverageSuppressed(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{
		makeSignal(models.SignalBuy, 0.5, "EMA", nil),
		makeSignal(models.SignalBuy, 0.6, "StochRSI", nil),
	}

	// avg 0.55 is below the floor even with a clean majority
	if got := c.Fuse("AAPL", inputs, 100); got != nil {
		t.Fatalf("weak average must suppress, got %+v", got)
	}
}

func TestCompositeFloorIsExclusive(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{
		makeSignal(models.SignalBuy, 0.6, "EMA", nil),
		makeSignal(models.SignalBuy, 0.6, "StochRSI", nil),
	}

	if got := c.Fuse("AAPL", inputs, 100); got != nil {
		t.Fatalf("avg exactly at the floor must suppress, got %+v", got)
	}
}

func TestCompositeTieSuppressed(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{
		makeSignal(models.SignalBuy, 0.9, "EMA", nil),
		makeSignal(models.SignalSell, 0.9, "SuperTrend", nil),
	}

	if got := c.Fuse("AAPL", inputs, 100); got != nil {
		t.Fatalf("directional tie must suppress, got %+v", got)
	}
}

func TestCompositeBearishMajority(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{
		makeSignal(models.SignalSell, 0.8, "SuperTrend", nil),
		makeSignal(models.SignalSell, 0.7, "EMA", nil),
	}

	got := c.Fuse("AAPL", inputs, 100)
	if got == nil || got.Type != models.SignalSell {
		t.Fatalf("expected SELL composite, got %+v", got)
	}
}

func TestCompositeNeutralDoesNotVote(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{
		makeSignal(models.SignalBuy, 0.8, "EMA", nil),
		makeSignal(models.SignalNeutral, 0.9, "Volume", nil),
	}

	got := c.Fuse("AAPL", inputs, 100)
	if got == nil || got.Type != models.SignalBuy {
		t.Fatalf("neutral input should only contribute strength, got %+v", got)
	}
}

func TestCompositeMetadataUnion(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{
		makeSignal(models.SignalBuy, 0.8, "EMA", map[string]interface{}{"ema_fast": 10.0, "rsi": 30.0}),
		makeSignal(models.SignalBuy, 0.8, "StochRSI", map[string]interface{}{"rsi": 25.0}),
		makeSignal(models.SignalBuy, 0.8, "EMA", nil),
	}

	got := c.Fuse("AAPL", inputs, 100)
	if got == nil {
		t.Fatalf("expected composite signal")
	}
	if got.Indicators["ema_fast"] != 10.0 {
		t.Fatalf("expected ema_fast carried over, got %v", got.Indicators["ema_fast"])
	}
	if got.Indicators["rsi"] != 25.0 {
		t.Fatalf("later contributor must win collisions, got %v", got.Indicators["rsi"])
	}

	if len(got.Metadata.Strategies) != 2 {
		t.Fatalf("strategies must dedup, got %v", got.Metadata.Strategies)
	}
	if len(got.Metadata.ComponentSignals) != 3 {
		t.Fatalf("expected 3 component IDs, got %v", got.Metadata.ComponentSignals)
	}
	for i, in := range inputs {
		if got.Metadata.ComponentSignals[i] != in.ID {
			t.Fatalf("component ID %d mismatch", i)
		}
	}
	if !strings.Contains(got.Reason, "EMA fired") || !strings.Contains(got.Reason, "StochRSI fired") {
		t.Fatalf("reasons must be joined, got %q", got.Reason)
	}
}

func TestCompositePriceFallback(t *testing.T) {
	c := NewCompositeProcessor(2, 0.6)
	inputs := []models.Signal{
		makeSignal(models.SignalBuy, 0.8, "EMA", nil),
		makeSignal(models.SignalBuy, 0.8, "StochRSI", nil),
	}

	got := c.Fuse("AAPL", inputs, 0)
	if got == nil || got.Price != 100 {
		t.Fatalf("expected fallback to first input price, got %+v", got)
	}

	got = c.Fuse("AAPL", inputs, 250)
	if got == nil || got.Price != 250 {
		t.Fatalf("explicit price must win, got %+v", got)
	}
}
