package performance

import (
	"sync"

	"signalflow/logger"
	"signalflow/models"
)

// ArchiveFunc receives signals trimmed out of the history window, giving
// them a durable home before they are forgotten.
type ArchiveFunc func([]models.Signal)

// Tracker accumulates emitted signals, last-known positions and order events,
// deriving rollup statistics on demand. History and the order log are capped;
// trimmed signals are handed to the optional archive hook.
type Tracker struct {
	mu sync.RWMutex

	history    []models.Signal
	maxHistory int

	totalSignals int64 // lifetime, survives trimming

	positions map[string]models.Position

	orders    []models.Order
	maxOrders int

	archive ArchiveFunc

	log *logger.Log
}

func NewTracker(maxHistory, maxOrders int, archive ArchiveFunc) *Tracker {
	if maxHistory <= 0 {
		maxHistory = 1000
	}
	if maxOrders <= 0 {
		maxOrders = 1000
	}
	return &Tracker{
		maxHistory: maxHistory,
		maxOrders:  maxOrders,
		positions:  make(map[string]models.Position),
		archive:    archive,
		log:        logger.GetLogger(),
	}
}

// TrackSignal appends the signal to the history window.
func (t *Tracker) TrackSignal(s models.Signal) {
	var trimmed []models.Signal

	t.mu.Lock()
	t.history = append(t.history, s)
	t.totalSignals++
	if excess := len(t.history) - t.maxHistory; excess > 0 {
		trimmed = append([]models.Signal(nil), t.history[:excess]...)
		t.history = append([]models.Signal(nil), t.history[excess:]...)
	}
	t.mu.Unlock()

	if len(trimmed) > 0 && t.archive != nil {
		t.archive(trimmed)
	}
}

// UpdatePosition overwrites the position keyed by symbol, latest wins.
func (t *Tracker) UpdatePosition(p models.Position) {
	if p.Symbol == "" {
		return
	}
	t.mu.Lock()
	t.positions[p.Symbol] = p
	t.mu.Unlock()
}

// TrackOrder appends to the order log. Orders are not deduplicated by id;
// duplicate delivery shows up as repeated entries within the capped window.
func (t *Tracker) TrackOrder(o models.Order) {
	t.mu.Lock()
	t.orders = append(t.orders, o)
	if excess := len(t.orders) - t.maxOrders; excess > 0 {
		t.orders = append([]models.Order(nil), t.orders[excess:]...)
	}
	t.mu.Unlock()
}

// Snapshot derives the aggregate rollup, including per-symbol breakdowns.
func (t *Tracker) Snapshot() models.PerformanceSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := models.PerformanceSnapshot{
		TotalSignals: t.totalSignals,
		Symbols:      make(map[string]models.SymbolPerformance),
	}

	var sum float64
	for i := range t.history {
		s := t.history[i]
		sum += s.Strength

		perf := snap.Symbols[s.Symbol]
		perf.TotalSignals++
		perf.AvgStrength += s.Strength // running sum, divided below
		last := s
		perf.LastSignal = &last
		snap.Symbols[s.Symbol] = perf
	}
	if len(t.history) > 0 {
		snap.AvgStrength = sum / float64(len(t.history))
	}
	for sym, perf := range snap.Symbols {
		perf.AvgStrength /= float64(perf.TotalSignals)
		snap.Symbols[sym] = perf
	}
	return snap
}

// Symbol computes the rollup for one symbol from the retained history.
func (t *Tracker) Symbol(symbol string) models.SymbolPerformance {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var perf models.SymbolPerformance
	var sum float64
	for i := range t.history {
		if t.history[i].Symbol != symbol {
			continue
		}
		perf.TotalSignals++
		sum += t.history[i].Strength
		last := t.history[i]
		perf.LastSignal = &last
	}
	if perf.TotalSignals > 0 {
		perf.AvgStrength = sum / float64(perf.TotalSignals)
	}
	return perf
}

// History returns the newest signals, optionally filtered by symbol. A
// non-positive limit returns the full retained window.
func (t *Tracker) History(symbol string, limit int) []models.Signal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Signal, 0, len(t.history))
	for i := range t.history {
		if symbol != "" && t.history[i].Symbol != symbol {
			continue
		}
		out = append(out, t.history[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Positions returns a copy of the last-known positions.
func (t *Tracker) Positions() map[string]models.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]models.Position, len(t.positions))
	for k, v := range t.positions {
		out[k] = v
	}
	return out
}

// Orders returns a copy of the retained order log.
func (t *Tracker) Orders() []models.Order {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.Order(nil), t.orders...)
}

// Reset drops all accumulated state. Called only on explicit teardown.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.history = nil
	t.orders = nil
	t.positions = make(map[string]models.Position)
	t.totalSignals = 0
	t.mu.Unlock()
	t.log.WithComponent("performance").Info("tracker reset")
}
