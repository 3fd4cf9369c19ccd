package writer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	appconfig "signalflow/config"
	"signalflow/internal/channel"
	"signalflow/internal/marketdata"
	"signalflow/internal/metrics"
	"signalflow/internal/performance"
	"signalflow/logger"
	"signalflow/models"
)

// Sink is the visualization endpoint signals are drained into.
type Sink interface {
	AddSignal(signal models.Signal) error
	UpdateChartData(candle models.Candle) error
	Connected() bool
}

// Visualizer is the single consumer of the signal queue. It forwards each
// signal to the sink in arrival order, records it in the performance tracker
// and paces deliveries so a burst cannot flood the visualization layer. A
// sink failure never stalls the drain: the signal is still tracked and the
// loop moves on.
type Visualizer struct {
	config   *appconfig.Config
	channels *channel.Channels
	cache    *marketdata.Cache
	tracker  *performance.Tracker
	sink     Sink
	limiter  *rate.Limiter

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log

	delivered  int64
	sinkErrors int64
}

func NewVisualizer(cfg *appconfig.Config, ch *channel.Channels, cache *marketdata.Cache, tracker *performance.Tracker, sink Sink) *Visualizer {
	interval := time.Duration(cfg.Queue.DrainIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Visualizer{
		config:   cfg,
		channels: ch,
		cache:    cache,
		tracker:  tracker,
		sink:     sink,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start launches the drain loop. The queue has exactly one consumer, so
// ordering is preserved end to end.
func (v *Visualizer) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.running {
		v.mu.Unlock()
		return fmt.Errorf("visualizer already running")
	}
	v.running = true
	v.ctx = ctx
	v.mu.Unlock()

	log := v.log.WithComponent("visualizer").WithFields(logger.Fields{"operation": "start"})
	log.Info("starting visualizer")

	v.wg.Add(1)
	go v.drain()
	go v.metricsReporter(ctx)

	log.Info("visualizer started successfully")
	return nil
}

// Stop waits for the drain loop to exit.
func (v *Visualizer) Stop() {
	v.mu.Lock()
	v.running = false
	v.mu.Unlock()

	v.log.WithComponent("visualizer").Info("stopping visualizer")
	v.wg.Wait()
	v.log.WithComponent("visualizer").Info("visualizer stopped")
}

func (v *Visualizer) drain() {
	defer v.wg.Done()

	log := v.log.WithComponent("visualizer").WithFields(logger.Fields{"worker": "drain"})
	log.Info("starting drain loop")

	for {
		select {
		case <-v.ctx.Done():
			log.Info("drain loop stopped due to context cancellation")
			return
		case sig, ok := <-v.channels.Signals:
			if !ok {
				log.Info("signal channel closed, drain loop stopping")
				return
			}
			v.deliver(sig, log)
			if err := v.limiter.Wait(v.ctx); err != nil {
				return
			}
		}
	}
}

// deliver pushes one signal to the sink and records it. Tracking happens
// regardless of sink state so statistics stay complete across disconnects.
func (v *Visualizer) deliver(sig models.Signal, log *logger.Entry) {
	if v.sink != nil && v.sink.Connected() {
		if err := v.sink.AddSignal(sig); err != nil {
			atomic.AddInt64(&v.sinkErrors, 1)
			log.WithError(err).WithFields(logger.Fields{
				"symbol": sig.Symbol,
				"type":   sig.Type,
			}).Warn("failed to deliver signal to sink")
		}
	}

	v.tracker.TrackSignal(sig)
	v.cache.MarkActive(sig.Symbol)

	atomic.AddInt64(&v.delivered, 1)
	logger.LogDataFlowEntry(log, "signal_queue", "sink", 1, "signal")
}

// metricsReporter periodically emits drain loop statistics.
func (v *Visualizer) metricsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.Emit(v.log, "visualizer", "signals_delivered", atomic.LoadInt64(&v.delivered), "counter", nil)
			metrics.Emit(v.log, "visualizer", "sink_errors", atomic.LoadInt64(&v.sinkErrors), "counter", nil)
			metrics.Emit(v.log, "visualizer", "queue_depth", v.channels.QueueDepth(), "gauge", nil)
		}
	}
}
