package processor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	appconfig "signalflow/config"
	"signalflow/internal/channel"
	"signalflow/internal/marketdata"
	"signalflow/internal/performance"
	"signalflow/models"
)

type fakeChart struct {
	candles []models.Candle
}

func (f *fakeChart) UpdateChartData(c models.Candle) error {
	f.candles = append(f.candles, c)
	return nil
}

func testEngine(t *testing.T) (*Engine, *channel.Channels, *marketdata.Cache, *performance.Tracker, *fakeChart) {
	t.Helper()
	cfg := &appconfig.Config{}
	cfg.Processor.MaxWorkers = 1
	cfg.Processor.MinCompositeSignals = 2
	cfg.Processor.MinCompositeStrength = 0.6
	cfg.Processor.VolumeRatioThreshold = 1.5
	cfg.Processor.DefaultStrength = 0.5

	channels := channel.NewChannels(16, 16)
	cache := marketdata.NewCache(64)
	tracker := performance.NewTracker(100, 100, nil)
	chart := &fakeChart{}
	return NewEngine(cfg, channels, cache, tracker, nil, chart), channels, cache, tracker, chart
}

func mustFrame(t *testing.T, frameType models.FrameType, v interface{}) models.RawFrame {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return models.RawFrame{Type: frameType, Data: data, Received: time.Now()}
}

func TestEngineSingleSignalPassesThrough(t *testing.T) {
	eng, channels, _, _, _ := testEngine(t)
	eng.ctx = context.Background()

	payload := models.SignalPayload{
		Symbol: "AAPL",
		Price:  150,
		Signals: models.IndicatorSet{
			EMA: &models.IndicatorState{Signal: 1, Strength: 0.7},
		},
	}
	if err := eng.handleFrame(mustFrame(t, models.FrameSignalUpdate, payload)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}

	select {
	case s := <-channels.Signals:
		if s.Type != models.SignalBuy || s.Metadata.Source != "EMA" {
			t.Fatalf("expected raw EMA signal, got %+v", s)
		}
	default:
		t.Fatalf("expected one signal enqueued")
	}
}

func TestEngineCompositeReplacesComponents(t *testing.T) {
	eng, channels, _, _, _ := testEngine(t)
	eng.ctx = context.Background()

	payload := models.SignalPayload{
		Symbol: "AAPL",
		Price:  150,
		Signals: models.IndicatorSet{
			EMA:      &models.IndicatorState{Signal: 1, Strength: 0.7},
			StochRSI: &models.IndicatorState{Signal: 1, Status: "OVERSOLD", Strength: 0.8},
		},
	}
	if err := eng.handleFrame(mustFrame(t, models.FrameSignalUpdate, payload)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}

	select {
	case s := <-channels.Signals:
		if s.Metadata.Source != "Composite" {
			t.Fatalf("expected composite, got %+v", s)
		}
		if len(s.Metadata.ComponentSignals) != 2 {
			t.Fatalf("expected 2 components, got %v", s.Metadata.ComponentSignals)
		}
	default:
		t.Fatalf("expected composite enqueued")
	}
	select {
	case s := <-channels.Signals:
		t.Fatalf("components must not leak past the composite, got %+v", s)
	default:
	}
}

func TestEngineSuppressedCompositeEmitsNothing(t *testing.T) {
	eng, channels, _, _, _ := testEngine(t)
	eng.ctx = context.Background()

	// buy vs sell tie: both fire, fusion suppresses
	payload := models.SignalPayload{
		Symbol: "AAPL",
		Signals: models.IndicatorSet{
			EMA:        &models.IndicatorState{Signal: 1, Strength: 0.9},
			SuperTrend: &models.IndicatorState{Signal: -1, Strength: 0.9},
		},
	}
	if err := eng.handleFrame(mustFrame(t, models.FrameSignalUpdate, payload)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}

	select {
	case s := <-channels.Signals:
		t.Fatalf("tie should suppress all emission, got %+v", s)
	default:
	}
}

func TestEngineRealTimeUpdateFansOut(t *testing.T) {
	eng, channels, cache, tracker, _ := testEngine(t)
	eng.ctx = context.Background()

	update := models.RealTimeUpdate{
		TickerPrices: map[string]float64{"AAPL": 151.5},
		TickerSignals: map[string]models.SignalPayload{
			"AAPL": {Signals: models.IndicatorSet{
				SuperTrend: &models.IndicatorState{Signal: -1, Strength: 0.7},
			}},
		},
		Positions: []models.Position{{Symbol: "AAPL", Qty: 10, AvgEntryPrice: 140}},
	}
	if err := eng.handleFrame(mustFrame(t, models.FrameRealTimeUpdate, update)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}

	if price := cache.Price("AAPL"); price != 151.5 {
		t.Fatalf("expected cached price 151.5, got %v", price)
	}
	select {
	case s := <-channels.Signals:
		if s.Type != models.SignalSell {
			t.Fatalf("expected SELL, got %+v", s)
		}
		if s.Price != 151.5 {
			t.Fatalf("signal should use cached price, got %v", s.Price)
		}
	default:
		t.Fatalf("expected SuperTrend signal enqueued")
	}
	positions := tracker.Positions()
	if pos, ok := positions["AAPL"]; !ok || pos.Qty != 10 {
		t.Fatalf("expected tracked position, got %+v", positions)
	}
}

func TestEngineMarketDataUpdatesCacheAndChart(t *testing.T) {
	eng, _, cache, _, chart := testEngine(t)
	eng.ctx = context.Background()

	open, high, low, last := 100.0, 110.0, 95.0, 105.0
	update := models.MarketDataUpdate{
		Updates: []models.MarketDataFields{{
			Symbol: "AAPL", Price: &last,
			Open: &open, High: &high, Low: &low, Close: &last,
		}},
	}
	if err := eng.handleFrame(mustFrame(t, models.FrameMarketData, update)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}

	if price := cache.Price("AAPL"); price != 105.0 {
		t.Fatalf("expected cached price 105, got %v", price)
	}
	if len(chart.candles) != 1 || chart.candles[0].High != 110.0 {
		t.Fatalf("expected one candle forwarded, got %+v", chart.candles)
	}
}

func TestEngineOrderUpdate(t *testing.T) {
	eng, _, _, tracker, _ := testEngine(t)
	eng.ctx = context.Background()

	order := models.Order{ID: "o-1", Symbol: "AAPL", Side: "buy", Qty: 5, Price: 150}
	if err := eng.handleFrame(mustFrame(t, models.FrameOrderUpdate, order)); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if orders := tracker.Orders(); len(orders) != 1 || orders[0].ID != "o-1" {
		t.Fatalf("expected tracked order, got %+v", orders)
	}
}

func TestEngineMalformedFrameReturnsError(t *testing.T) {
	eng, _, _, _, _ := testEngine(t)
	eng.ctx = context.Background()

	frame := models.RawFrame{Type: models.FrameSignalUpdate, Data: json.RawMessage(`{"symbol":`)}
	if err := eng.handleFrame(frame); err == nil {
		t.Fatalf("expected decode error")
	}

	frame = models.RawFrame{Type: "mystery", Data: json.RawMessage(`{}`)}
	if err := eng.handleFrame(frame); err == nil {
		t.Fatalf("expected unknown type error")
	}
}

func TestEngineStartIsExclusive(t *testing.T) {
	eng, channels, _, _, _ := testEngine(t)
	defer channels.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := eng.Start(ctx); err == nil {
		t.Fatalf("second start must fail")
	}
	cancel()
	eng.Stop()
}
