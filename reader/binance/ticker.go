package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	appconfig "signalflow/config"
	"signalflow/internal/channel"
	"signalflow/logger"
	"signalflow/models"

	futures "github.com/adshao/go-binance/v2/futures"
)

// TickerReader supplements the primary signal stream with live kline data
// from Binance futures. Each configured symbol gets its own websocket
// subscription; closed klines are forwarded as market data frames so the
// cache and charts stay fresh even when the signal server is quiet.
type TickerReader struct {
	config   *appconfig.Config
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

func NewTickerReader(cfg *appconfig.Config, ch *channel.Channels) *TickerReader {
	return &TickerReader{
		config:   cfg,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start subscribes to kline streams for all configured symbols.
func (r *TickerReader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("ticker reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	cfg := r.config.Binance
	log := r.log.WithComponent("binance_ticker_reader").WithFields(logger.Fields{"operation": "start"})

	if !cfg.Enabled {
		log.Warn("binance ticker feed is disabled")
		return fmt.Errorf("binance ticker feed is disabled")
	}
	if len(cfg.Symbols) == 0 {
		return fmt.Errorf("binance ticker feed has no symbols configured")
	}

	log.WithFields(logger.Fields{"symbols": cfg.Symbols, "interval": cfg.Interval}).Info("starting ticker reader")
	for _, symbol := range cfg.Symbols {
		r.wg.Add(1)
		go r.streamSymbol(symbol, cfg.Interval)
	}

	log.Info("binance ticker reader started successfully")
	return nil
}

// Stop terminates all kline subscriptions.
func (r *TickerReader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("binance_ticker_reader").Info("stopping ticker reader")
	r.wg.Wait()
	r.log.WithComponent("binance_ticker_reader").Info("ticker reader stopped")
}

func (r *TickerReader) streamSymbol(symbol, interval string) {
	defer r.wg.Done()

	log := r.log.WithComponent("binance_ticker_reader").WithFields(logger.Fields{
		"symbol": symbol,
		"worker": "kline_stream",
	})

	handler := func(event *futures.WsKlineEvent) {
		fields, err := klineFields(event)
		if err != nil {
			log.WithError(err).Warn("failed to parse kline event")
			return
		}

		payload, err := json.Marshal(models.MarketDataUpdate{MarketDataFields: fields})
		if err != nil {
			log.WithError(err).Warn("failed to marshal kline update")
			return
		}

		frame := models.RawFrame{
			Type:     models.FrameMarketData,
			Data:     payload,
			Received: time.Now(),
		}
		if r.channels.SendFrame(r.ctx, frame) {
			logger.LogDataFlowEntry(log, "binance_ws", "frames", 1, "kline")
		} else if r.ctx.Err() != nil {
			return
		} else {
			log.Warn("frame channel full, dropping kline")
		}
	}

	errHandler := func(err error) {
		if err != nil {
			log.WithError(err).Warn("websocket error")
		}
	}

	doneC, stopC, err := futures.WsKlineServe(symbol, interval, handler, errHandler)
	if err != nil {
		log.WithError(err).Error("failed to subscribe to kline stream")
		return
	}

	select {
	case <-r.ctx.Done():
		close(stopC)
		<-doneC
	case <-doneC:
		// stream ended
	}
}

// klineFields converts a kline event into cache update fields. Prices arrive
// as decimal strings on the wire.
func klineFields(event *futures.WsKlineEvent) (models.MarketDataFields, error) {
	if event == nil {
		return models.MarketDataFields{}, fmt.Errorf("nil kline event")
	}
	k := event.Kline

	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return models.MarketDataFields{}, fmt.Errorf("parse open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return models.MarketDataFields{}, fmt.Errorf("parse high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return models.MarketDataFields{}, fmt.Errorf("parse low %q: %w", k.Low, err)
	}
	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return models.MarketDataFields{}, fmt.Errorf("parse close %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return models.MarketDataFields{}, fmt.Errorf("parse volume %q: %w", k.Volume, err)
	}

	return models.MarketDataFields{
		Symbol: event.Symbol,
		Price:  &closePrice,
		Open:   &open,
		High:   &high,
		Low:    &low,
		Close:  &closePrice,
		Volume: &volume,
	}, nil
}
