package performance

import (
	"testing"

	"signalflow/models"
)

func sig(symbol string, strength float64) models.Signal {
	return models.NewSignal(symbol, models.SignalBuy, strength, 100, "test", "test", nil, nil)
}

func TestSnapshotAggregates(t *testing.T) {
	tr := NewTracker(10, 10, nil)
	tr.TrackSignal(sig("AAPL", 0.8))
	tr.TrackSignal(sig("AAPL", 0.6))
	tr.TrackSignal(sig("MSFT", 0.4))

	snap := tr.Snapshot()
	if snap.TotalSignals != 3 {
		t.Fatalf("expected 3 total signals, got %d", snap.TotalSignals)
	}
	if got := snap.AvgStrength; got < 0.599 || got > 0.601 {
		t.Fatalf("expected avg strength 0.6, got %v", got)
	}
	aapl := snap.Symbols["AAPL"]
	if aapl.TotalSignals != 2 {
		t.Fatalf("expected 2 AAPL signals, got %d", aapl.TotalSignals)
	}
	if got := aapl.AvgStrength; got < 0.699 || got > 0.701 {
		t.Fatalf("expected AAPL avg 0.7, got %v", got)
	}
	if aapl.LastSignal == nil || aapl.LastSignal.Strength != 0.6 {
		t.Fatalf("unexpected last signal: %+v", aapl.LastSignal)
	}
}

func TestHistoryCapHandsTrimmedToArchive(t *testing.T) {
	var archived []models.Signal
	tr := NewTracker(3, 10, func(batch []models.Signal) {
		archived = append(archived, batch...)
	})

	for i := 0; i < 5; i++ {
		tr.TrackSignal(sig("AAPL", 0.5))
	}

	if got := len(tr.History("", 0)); got != 3 {
		t.Fatalf("expected history capped at 3, got %d", got)
	}
	if len(archived) != 2 {
		t.Fatalf("expected 2 archived signals, got %d", len(archived))
	}
	if snap := tr.Snapshot(); snap.TotalSignals != 5 {
		t.Fatalf("lifetime counter must survive trimming, got %d", snap.TotalSignals)
	}
}

func TestSymbolRollup(t *testing.T) {
	tr := NewTracker(10, 10, nil)
	tr.TrackSignal(sig("AAPL", 0.9))
	tr.TrackSignal(sig("MSFT", 0.1))

	perf := tr.Symbol("AAPL")
	if perf.TotalSignals != 1 || perf.AvgStrength != 0.9 {
		t.Fatalf("unexpected rollup: %+v", perf)
	}
	if perf.LastSignal == nil || perf.LastSignal.Symbol != "AAPL" {
		t.Fatalf("unexpected last signal: %+v", perf.LastSignal)
	}

	empty := tr.Symbol("TSLA")
	if empty.TotalSignals != 0 || empty.LastSignal != nil {
		t.Fatalf("expected empty rollup, got %+v", empty)
	}
}

func TestHistoryFilterAndLimit(t *testing.T) {
	tr := NewTracker(10, 10, nil)
	tr.TrackSignal(sig("AAPL", 0.1))
	tr.TrackSignal(sig("MSFT", 0.2))
	tr.TrackSignal(sig("AAPL", 0.3))

	aapl := tr.History("AAPL", 0)
	if len(aapl) != 2 {
		t.Fatalf("expected 2 AAPL signals, got %d", len(aapl))
	}

	limited := tr.History("", 2)
	if len(limited) != 2 || limited[1].Strength != 0.3 {
		t.Fatalf("limit must keep the newest signals: %+v", limited)
	}
}

func TestPositionUpsertLatestWins(t *testing.T) {
	tr := NewTracker(10, 10, nil)
	tr.UpdatePosition(models.Position{Symbol: "AAPL", Qty: 1})
	tr.UpdatePosition(models.Position{Symbol: "AAPL", Qty: 5})

	positions := tr.Positions()
	if len(positions) != 1 || positions["AAPL"].Qty != 5 {
		t.Fatalf("unexpected positions: %+v", positions)
	}
}

func TestOrdersAppendOnlyAndCapped(t *testing.T) {
	tr := NewTracker(10, 2, nil)
	tr.TrackOrder(models.Order{ID: "1", Symbol: "AAPL"})
	tr.TrackOrder(models.Order{ID: "1", Symbol: "AAPL"}) // duplicate id is kept
	tr.TrackOrder(models.Order{ID: "2", Symbol: "AAPL"})

	orders := tr.Orders()
	if len(orders) != 2 {
		t.Fatalf("expected order log capped at 2, got %d", len(orders))
	}
	if orders[0].ID != "1" || orders[1].ID != "2" {
		t.Fatalf("unexpected retained orders: %+v", orders)
	}
}

func TestReset(t *testing.T) {
	tr := NewTracker(10, 10, nil)
	tr.TrackSignal(sig("AAPL", 0.5))
	tr.UpdatePosition(models.Position{Symbol: "AAPL", Qty: 1})
	tr.Reset()

	if snap := tr.Snapshot(); snap.TotalSignals != 0 || len(snap.Symbols) != 0 {
		t.Fatalf("reset must clear state: %+v", snap)
	}
	if len(tr.Positions()) != 0 {
		t.Fatalf("reset must clear positions")
	}
}
