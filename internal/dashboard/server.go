package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appconfig "signalflow/config"
	"signalflow/internal/marketdata"
	"signalflow/internal/performance"
	"signalflow/logger"
	"signalflow/models"
)

// StatusSource reports transport and queue state for the status endpoint.
type StatusSource interface {
	Status() models.ConnectionStatus
}

// Server hosts the JSON monitoring API: connection status, performance
// rollups, recent signals, chart candles and captured logs.
type Server struct {
	cfg        appconfig.DashboardConfig
	log        *logger.Log
	status     StatusSource
	tracker    *performance.Tracker
	cache      *marketdata.Cache
	chart      *ChartStore
	logStore   *logStore
	httpServer *http.Server
}

// NewServer constructs a dashboard server when the dashboard feature is
// enabled. When the dashboard is disabled the returned server will be nil.
func NewServer(cfg appconfig.DashboardConfig, log *logger.Log, status StatusSource, tracker *performance.Tracker, cache *marketdata.Cache, chart *ChartStore) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)

	logStore := newLogStore(cfg.LogHistory)
	log.AddHook(logStore)

	return &Server{
		cfg:      cfg,
		log:      log,
		status:   status,
		tracker:  tracker,
		cache:    cache,
		chart:    chart,
		logStore: logStore,
	}
}

// Run starts the dashboard HTTP server and blocks until the provided context
// is cancelled or the server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	defer s.cleanup()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return err
	}
}

func (s *Server) cleanup() {
	if s.logStore != nil {
		s.logStore.close()
	}
}

// Address reports the network address the dashboard server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.GET("/api/status", func(c *gin.Context) {
		status := models.ConnectionStatus{State: models.StateDisconnected}
		if s.status != nil {
			status = s.status.Status()
		}
		status.ActiveSymbols = s.cache.ActiveSymbols()
		c.JSON(http.StatusOK, status)
	})

	router.GET("/api/performance", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.tracker.Snapshot())
	})

	router.GET("/api/signals", func(c *gin.Context) {
		symbol := c.Query("symbol")
		limit := 50
		if raw := c.Query("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		c.JSON(http.StatusOK, gin.H{"signals": s.tracker.History(symbol, limit)})
	})

	router.GET("/api/candles", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"candles": s.chart.Candles()})
	})

	router.GET("/api/logs", func(c *gin.Context) {
		logsSnapshot := s.logStore.snapshot()
		payload := make([]gin.H, 0, len(logsSnapshot))
		for _, l := range logsSnapshot {
			payload = append(payload, gin.H{
				"timestamp": l.Timestamp.Format(time.RFC3339Nano),
				"level":     l.Level,
				"component": l.Component,
				"message":   l.Message,
				"fields":    l.Fields,
			})
		}
		c.JSON(http.StatusOK, gin.H{"logs": payload})
	})

	return router, nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
