package writer

import (
	"strings"
	"testing"
	"time"

	appconfig "signalflow/config"
	"signalflow/models"
)

func TestArchiveKeyLayout(t *testing.T) {
	cfg := &appconfig.Config{}
	cfg.Storage.S3.Prefix = "/signals/"
	w := &ArchiveWriter{config: cfg}

	ts := time.Date(2025, time.March, 7, 14, 30, 0, 0, time.UTC)
	key := w.generateKey(ts)

	if !strings.HasPrefix(key, "signals/year=2025/month=03/day=07/signals_20250307143000_") {
		t.Fatalf("unexpected key layout: %s", key)
	}
	if !strings.HasSuffix(key, ".parquet") {
		t.Fatalf("expected parquet extension: %s", key)
	}
	if strings.Contains(key, "//") {
		t.Fatalf("key must not contain empty segments: %s", key)
	}
}

func TestArchiveBufferAccumulates(t *testing.T) {
	w := &ArchiveWriter{config: &appconfig.Config{}}

	w.Add(nil)
	w.Add([]models.Signal{
		models.NewSignal("AAPL", models.SignalBuy, 0.8, 100, "test", "EMA", nil, nil),
		models.NewSignal("MSFT", models.SignalSell, 0.7, 200, "test", "SuperTrend", nil, nil),
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buffer) != 2 {
		t.Fatalf("expected 2 buffered signals, got %d", len(w.buffer))
	}
}
