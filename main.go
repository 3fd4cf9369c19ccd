package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signalflow/config"
	"signalflow/internal/channel"
	"signalflow/internal/dashboard"
	"signalflow/internal/marketdata"
	"signalflow/internal/metrics"
	"signalflow/internal/performance"
	"signalflow/logger"
	"signalflow/processor"
	"signalflow/reader"
	"signalflow/reader/binance"
	"signalflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Signalflow.Name,
		"version": cfg.Signalflow.Version,
	}).Info("starting signalflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}

	channels := channel.NewChannels(
		cfg.Channels.FrameBuffer,
		cfg.Channels.SignalBuffer,
	)
	defer channels.Close()

	cache := marketdata.NewCache(cfg.MarketData.MaxSymbols)

	var archiveWriter *writer.ArchiveWriter
	var archiveHook performance.ArchiveFunc
	if cfg.Storage.S3.Enabled {
		archiveWriter, err = writer.NewArchiveWriter(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create archive writer")
			os.Exit(1)
		}
		archiveHook = archiveWriter.Add
	} else {
		log.WithComponent("main").Info("S3 storage disabled; skipping archive writer")
	}

	tracker := performance.NewTracker(cfg.Performance.MaxSignalHistory, cfg.Performance.MaxOrderHistory, archiveHook)

	chartStore := dashboard.NewChartStore(cfg.Dashboard.MaxSignals)
	streamReader := reader.NewStreamReader(cfg, channels)
	engine := processor.NewEngine(cfg, channels, cache, tracker, streamReader, chartStore)
	visualizer := writer.NewVisualizer(cfg, channels, cache, tracker, chartStore)

	var tickerReader *binance.TickerReader
	if cfg.Binance.Enabled {
		tickerReader = binance.NewTickerReader(cfg, channels)
	}

	dashboardServer := dashboard.NewServer(cfg.Dashboard, log, streamReader, tracker, cache, chartStore)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := streamReader.Start(ctx); err != nil {
			log.WithError(err).Warn("stream reader failed to start")
		}
	}()

	if tickerReader != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tickerReader.Start(ctx); err != nil {
				log.WithError(err).Warn("ticker reader failed to start")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := engine.Start(ctx); err != nil {
			log.WithError(err).Warn("signal engine failed to start")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := visualizer.Start(ctx); err != nil {
			log.WithError(err).Warn("visualizer failed to start")
		}
	}()

	if archiveWriter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := archiveWriter.Start(ctx); err != nil {
				log.WithError(err).Warn("archive writer failed to start")
			}
		}()
	}

	if dashboardServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dashboardServer.Run(ctx); err != nil {
				log.WithError(err).Warn("dashboard server failed")
			}
		}()
	}

	time.Sleep(2 * time.Second)
	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping stream reader")
	streamReader.Stop()

	if tickerReader != nil {
		log.Info("stopping ticker reader")
		tickerReader.Stop()
	}

	log.Info("stopping signal engine")
	engine.Stop()

	log.Info("stopping visualizer")
	visualizer.Stop()

	if archiveWriter != nil {
		log.Info("stopping archive writer")
		archiveWriter.Stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("signalflow stopped")
}
