package writer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	appconfig "signalflow/config"
	"signalflow/internal/channel"
	"signalflow/internal/marketdata"
	"signalflow/internal/performance"
	"signalflow/models"
)

type recordingSink struct {
	mu        sync.Mutex
	signals   []models.Signal
	connected bool
	failNext  bool
}

func (s *recordingSink) AddSignal(sig models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return fmt.Errorf("sink unavailable")
	}
	s.signals = append(s.signals, sig)
	return nil
}

func (s *recordingSink) UpdateChartData(models.Candle) error { return nil }

func (s *recordingSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *recordingSink) recorded() []models.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

func testVisualizer(sink Sink) (*Visualizer, *channel.Channels, *performance.Tracker) {
	cfg := &appconfig.Config{}
	cfg.Queue.DrainIntervalMs = 1

	channels := channel.NewChannels(16, 16)
	cache := marketdata.NewCache(64)
	tracker := performance.NewTracker(100, 100, nil)
	return NewVisualizer(cfg, channels, cache, tracker, sink), channels, tracker
}

func enqueue(t *testing.T, channels *channel.Channels, symbols ...string) []models.Signal {
	t.Helper()
	signals := make([]models.Signal, 0, len(symbols))
	for _, sym := range symbols {
		sig := models.NewSignal(sym, models.SignalBuy, 0.8, 100, "test", "EMA", nil, []string{"EMA"})
		if !channels.SendSignal(context.Background(), sig) {
			t.Fatalf("enqueue %s failed", sym)
		}
		signals = append(signals, sig)
	}
	return signals
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestVisualizerPreservesOrder(t *testing.T) {
	sink := &recordingSink{connected: true}
	v, channels, tracker := testVisualizer(sink)

	sent := enqueue(t, channels, "AAPL", "MSFT", "TSLA")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := v.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool { return len(sink.recorded()) == 3 })
	cancel()
	v.Stop()

	got := sink.recorded()
	for i := range sent {
		if got[i].ID != sent[i].ID {
			t.Fatalf("delivery order broken at %d: want %s got %s", i, sent[i].Symbol, got[i].Symbol)
		}
	}
	if tracker.Snapshot().TotalSignals != 3 {
		t.Fatalf("all delivered signals must be tracked")
	}
}

func TestVisualizerSinkErrorDoesNotStall(t *testing.T) {
	sink := &recordingSink{connected: true, failNext: true}
	v, channels, tracker := testVisualizer(sink)

	enqueue(t, channels, "AAPL", "MSFT")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := v.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// first delivery fails, second lands; both are tracked
	waitFor(t, func() bool { return tracker.Snapshot().TotalSignals == 2 })
	cancel()
	v.Stop()

	if got := sink.recorded(); len(got) != 1 || got[0].Symbol != "MSFT" {
		t.Fatalf("expected only the second signal delivered, got %+v", got)
	}
}

func TestVisualizerTracksWhileDisconnected(t *testing.T) {
	sink := &recordingSink{connected: false}
	v, channels, tracker := testVisualizer(sink)

	enqueue(t, channels, "AAPL")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := v.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, func() bool { return tracker.Snapshot().TotalSignals == 1 })
	cancel()
	v.Stop()

	if got := sink.recorded(); len(got) != 0 {
		t.Fatalf("disconnected sink must receive nothing, got %+v", got)
	}
}

func TestVisualizerStartIsExclusive(t *testing.T) {
	sink := &recordingSink{}
	v, _, _ := testVisualizer(sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := v.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := v.Start(ctx); err == nil {
		t.Fatalf("second start must fail")
	}
	cancel()
	v.Stop()
}
