package dashboard

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"signalflow/models"
)

func TestChartStoreLimit(t *testing.T) {
	store := NewChartStore(2)
	for i := 0; i < 5; i++ {
		sig := models.NewSignal("AAPL", models.SignalBuy, float64(i)/10, 100, "test", "EMA", nil, nil)
		if err := store.AddSignal(sig); err != nil {
			t.Fatalf("AddSignal: %v", err)
		}
	}

	signals := store.Signals()
	if len(signals) != 2 {
		t.Fatalf("expected 2 retained signals, got %d", len(signals))
	}
	if signals[0].Strength != 0.3 || signals[1].Strength != 0.4 {
		t.Fatalf("unexpected signals retained: %#v", signals)
	}
}

func TestChartStoreLatestCandleWins(t *testing.T) {
	store := NewChartStore(10)

	if err := store.UpdateChartData(models.Candle{Symbol: "AAPL", Time: 1, Close: 100}); err != nil {
		t.Fatalf("UpdateChartData: %v", err)
	}
	if err := store.UpdateChartData(models.Candle{Symbol: "AAPL", Time: 2, Close: 101}); err != nil {
		t.Fatalf("UpdateChartData: %v", err)
	}
	if err := store.UpdateChartData(models.Candle{Time: 3}); err == nil {
		t.Fatalf("candle without symbol must be rejected")
	}

	candles := store.Candles()
	if len(candles) != 1 || candles["AAPL"].Close != 101 {
		t.Fatalf("unexpected candles: %#v", candles)
	}
	if !store.Connected() {
		t.Fatalf("chart store must always report connected")
	}
}

func TestLogStoreCapturesEntries(t *testing.T) {
	store := newLogStore(3)
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Unix(10, 0)
	entry.Level = logrus.WarnLevel
	entry.Message = "warning"
	entry.Data = logrus.Fields{"component": "test", "foo": "bar"}

	if err := store.Fire(entry); err != nil {
		t.Fatalf("store.Fire returned error: %v", err)
	}

	snapshot := store.snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(snapshot))
	}

	if snapshot[0].Component != "test" || snapshot[0].Fields["foo"] != "bar" {
		t.Fatalf("unexpected snapshot data: %#v", snapshot[0])
	}
}

func TestLogStoreRespectsLimitAndClose(t *testing.T) {
	store := newLogStore(2)
	for i := 0; i < 4; i++ {
		entry := logrus.NewEntry(logrus.New())
		entry.Message = "msg"
		entry.Level = logrus.InfoLevel
		entry.Data = logrus.Fields{"index": i}
		if err := store.Fire(entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snapshot := store.snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 retained entries, got %d", len(snapshot))
	}
	if snapshot[0].Fields["index"] != 2 || snapshot[1].Fields["index"] != 3 {
		t.Fatalf("unexpected entries retained: %#v", snapshot)
	}

	store.close()
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "after close"
	entry.Level = logrus.InfoLevel
	if err := store.Fire(entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.snapshot()) != 2 {
		t.Fatalf("closed store must not capture new entries")
	}
}
