package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	appconfig "signalflow/config"
	"signalflow/internal/channel"
	"signalflow/internal/marketdata"
	"signalflow/internal/performance"
	"signalflow/logger"
	"signalflow/models"
)

// ActivitySource reports global stream liveness for processor context.
type ActivitySource interface {
	LastUpdate() time.Time
	UpdateCount() int64
}

// ChartSink receives candles derived from market data updates.
type ChartSink interface {
	UpdateChartData(candle models.Candle) error
}

// Engine consumes raw frames, runs the per-indicator processors and the
// composite fusion, and enqueues resulting signals for the drain loop.
type Engine struct {
	config    *appconfig.Config
	channels  *channel.Channels
	cache     *marketdata.Cache
	tracker   *performance.Tracker
	activity  ActivitySource
	chart     ChartSink
	procs     []Processor
	composite *CompositeProcessor

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

func NewEngine(cfg *appconfig.Config, channels *channel.Channels, cache *marketdata.Cache, tracker *performance.Tracker, activity ActivitySource, chart ChartSink) *Engine {
	pc := cfg.Processor
	return &Engine{
		config:   cfg,
		channels: channels,
		cache:    cache,
		tracker:  tracker,
		activity: activity,
		chart:    chart,
		procs: []Processor{
			NewStochRSIProcessor(pc.DefaultStrength),
			NewEMAProcessor(pc.DefaultStrength),
			NewSuperTrendProcessor(pc.DefaultStrength),
			NewVolumeProcessor(pc.VolumeRatioThreshold),
		},
		composite: NewCompositeProcessor(pc.MinCompositeSignals, pc.MinCompositeStrength),
		wg:        &sync.WaitGroup{},
		log:       logger.GetLogger(),
	}
}

// Start launches the frame workers.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.ctx = ctx
	e.mu.Unlock()

	log := e.log.WithComponent("engine").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting signal engine")

	workers := e.config.Processor.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	log.Info("signal engine started successfully")
	return nil
}

// Stop waits for all workers to drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	e.log.WithComponent("engine").Info("stopping signal engine")
	e.wg.Wait()
	e.log.WithComponent("engine").Info("signal engine stopped")
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case frame, ok := <-e.channels.Frames:
			if !ok {
				return
			}
			if err := e.handleFrame(frame); err != nil {
				e.log.WithComponent("engine").WithError(err).WithFields(logger.Fields{
					"frame_type": frame.Type,
					"worker":     id,
				}).Warn("failed to handle frame")
			}
		}
	}
}

// handleFrame dispatches one frame by type. A failure in one frame must not
// stall the workers, so errors are reported upward for logging only.
func (e *Engine) handleFrame(frame models.RawFrame) error {
	switch frame.Type {
	case models.FrameRealTimeUpdate:
		var update models.RealTimeUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			return fmt.Errorf("decode real_time_update: %w", err)
		}
		for symbol, price := range update.TickerPrices {
			p := price
			e.cache.Update(symbol, models.MarketDataFields{Symbol: symbol, Price: &p})
		}
		for symbol, payload := range update.TickerSignals {
			p := payload
			e.handlePayload(symbol, &p)
		}
		for _, pos := range update.Positions {
			e.tracker.UpdatePosition(pos)
		}
		return nil

	case models.FrameSignalUpdate:
		var payload models.SignalPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return fmt.Errorf("decode signal_update: %w", err)
		}
		if payload.Symbol == "" {
			return fmt.Errorf("signal_update missing symbol")
		}
		e.handlePayload(payload.Symbol, &payload)
		return nil

	case models.FrameMarketData:
		var update models.MarketDataUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			return fmt.Errorf("decode market_data: %w", err)
		}
		for _, fields := range update.Flatten() {
			e.cache.Update(fields.Symbol, fields)
			e.forwardCandle(fields)
		}
		return nil

	case models.FramePositionUpdate:
		positions := models.DecodePositions(frame.Data)
		if positions == nil {
			return fmt.Errorf("decode position_update: unrecognized shape")
		}
		for _, pos := range positions {
			e.tracker.UpdatePosition(pos)
		}
		return nil

	case models.FrameOrderUpdate:
		var order models.Order
		if err := json.Unmarshal(frame.Data, &order); err != nil {
			return fmt.Errorf("decode order_update: %w", err)
		}
		e.tracker.TrackOrder(order)
		return nil

	default:
		return fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

// handlePayload runs every processor over one symbol's payload and enqueues
// the outcome: the composite when two or more indicators agree confidently,
// the lone signal when exactly one fires, nothing otherwise.
func (e *Engine) handlePayload(symbol string, payload *models.SignalPayload) {
	payload.Normalize()
	mctx := e.marketContext(symbol)

	signals := make([]models.Signal, 0, len(e.procs))
	for _, proc := range e.procs {
		if s := proc.Process(symbol, payload, mctx); s != nil {
			signals = append(signals, *s)
		}
	}

	switch {
	case len(signals) == 0:
		return
	case len(signals) == 1:
		e.enqueue(signals[0])
	default:
		if fused := e.composite.Fuse(symbol, signals, mctx.CachedPrice()); fused != nil {
			e.enqueue(*fused)
		}
	}
}

func (e *Engine) enqueue(s models.Signal) {
	if !e.channels.SendSignal(e.ctx, s) {
		e.log.WithComponent("engine").WithFields(logger.Fields{
			"symbol": s.Symbol,
			"type":   s.Type,
		}).Warn("signal queue full, dropping signal")
	}
}

func (e *Engine) forwardCandle(fields models.MarketDataFields) {
	if e.chart == nil || fields.Open == nil || fields.High == nil || fields.Low == nil || fields.Close == nil {
		return
	}
	candle := models.Candle{
		Time:   time.Now().Unix(),
		Symbol: fields.Symbol,
		Open:   *fields.Open,
		High:   *fields.High,
		Low:    *fields.Low,
		Close:  *fields.Close,
	}
	if err := e.chart.UpdateChartData(candle); err != nil {
		e.log.WithComponent("engine").WithError(err).WithFields(logger.Fields{
			"symbol": fields.Symbol,
		}).Warn("failed to forward candle")
	}
}

func (e *Engine) marketContext(symbol string) models.MarketContext {
	mctx := models.MarketContext{
		Performance: e.tracker.Symbol(symbol),
		Active:      e.cache.IsActive(symbol),
	}
	if entry, ok := e.cache.Get(symbol); ok {
		mctx.Entry = &entry
	}
	if e.activity != nil {
		mctx.LastUpdate = e.activity.LastUpdate()
		mctx.UpdateCount = e.activity.UpdateCount()
	}
	return mctx
}
