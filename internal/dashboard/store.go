package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"signalflow/models"
)

// ChartStore is the built-in visualization sink. It retains the most recent
// signals and the latest candle per symbol for the dashboard API. The store
// is always connected.
type ChartStore struct {
	mu      sync.RWMutex
	signals []models.Signal
	candles map[string]models.Candle
	limit   int
}

func NewChartStore(maxSignals int) *ChartStore {
	if maxSignals <= 0 {
		maxSignals = 200
	}
	return &ChartStore{
		candles: make(map[string]models.Candle),
		limit:   maxSignals,
	}
}

// AddSignal records a delivered signal for display.
func (s *ChartStore) AddSignal(sig models.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals = append(s.signals, sig)
	if len(s.signals) > s.limit {
		// keep the most recent entries only
		s.signals = append([]models.Signal(nil), s.signals[len(s.signals)-s.limit:]...)
	}
	return nil
}

// UpdateChartData stores the latest candle for a symbol.
func (s *ChartStore) UpdateChartData(candle models.Candle) error {
	if candle.Symbol == "" {
		return fmt.Errorf("candle missing symbol")
	}
	s.mu.Lock()
	s.candles[candle.Symbol] = candle
	s.mu.Unlock()
	return nil
}

// Connected reports whether the sink accepts data. The in-process store
// always does.
func (s *ChartStore) Connected() bool { return true }

// Signals returns the retained signals, most recent last.
func (s *ChartStore) Signals() []models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Signal, len(s.signals))
	copy(out, s.signals)
	return out
}

// Candles returns the latest candle per symbol.
func (s *ChartStore) Candles() map[string]models.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Candle, len(s.candles))
	for k, v := range s.candles {
		out[k] = v
	}
	return out
}

// logRecord is the serialisable representation of a captured log entry.
type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore retains the most recent logs that flow through the global logger.
// The store implements the logrus Hook interface so that it can be attached
// directly to the application's logger.
type logStore struct {
	mu      sync.RWMutex
	items   []logRecord
	limit   int
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	if limit <= 0 {
		limit = 200
	}
	ls := &logStore{limit: limit}
	ls.enabled.Store(true)
	return ls
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}

	if component, ok := entry.Data["component"].(string); ok {
		record.Component = component
	}

	if len(entry.Data) > 0 {
		record.Fields = make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			if k == "component" {
				continue
			}

			switch val := v.(type) {
			case error:
				record.Fields[k] = val.Error()
			case fmt.Stringer:
				record.Fields[k] = val.String()
			default:
				record.Fields[k] = val
			}
		}
	}

	s.mu.Lock()
	s.items = append(s.items, record)
	if len(s.items) > s.limit {
		s.items = append([]logRecord(nil), s.items[len(s.items)-s.limit:]...)
	}
	s.mu.Unlock()
	return nil
}

func (s *logStore) snapshot() []logRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]logRecord, len(s.items))
	copy(out, s.items)
	return out
}

func (s *logStore) close() {
	s.enabled.Store(false)
}
