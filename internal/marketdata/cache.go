package marketdata

import (
	"container/list"
	"sync"
	"time"

	"signalflow/logger"
	"signalflow/models"
)

type cacheEntry struct {
	symbol string
	data   models.MarketDataEntry
}

// Cache holds the most recent market snapshot per symbol, bounded by an LRU
// policy so a long tail of one-off symbols cannot grow the map without limit.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List // front = most recently updated
	limit   int

	active map[string]time.Time

	log *logger.Log
}

func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = 512
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		limit:   limit,
		active:  make(map[string]time.Time),
		log:     logger.GetLogger(),
	}
}

// Update merges the partial fields over the existing entry, creating it on
// first sight, and refreshes the entry's last-update time.
func (c *Cache) Update(symbol string, fields models.MarketDataFields) {
	if symbol == "" {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[symbol]; ok {
		entry := el.Value.(*cacheEntry)
		entry.data.Merge(fields, now)
		c.order.MoveToFront(el)
		return
	}

	entry := &cacheEntry{symbol: symbol, data: models.MarketDataEntry{Symbol: symbol}}
	entry.data.Merge(fields, now)
	c.entries[symbol] = c.order.PushFront(entry)

	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*cacheEntry)
		c.order.Remove(oldest)
		delete(c.entries, evicted.symbol)
		delete(c.active, evicted.symbol)
		c.log.WithComponent("market_cache").WithFields(logger.Fields{
			"symbol": evicted.symbol,
		}).Debug("evicted least recently updated symbol")
	}
}

// Get returns a copy of the cached entry for the symbol.
func (c *Cache) Get(symbol string) (models.MarketDataEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	el, ok := c.entries[symbol]
	if !ok {
		return models.MarketDataEntry{}, false
	}
	return el.Value.(*cacheEntry).data, true
}

// Price returns the cached price for the symbol, or zero when unknown.
func (c *Cache) Price(symbol string) float64 {
	entry, ok := c.Get(symbol)
	if !ok {
		return 0
	}
	return entry.Price
}

// MarkActive flags the symbol as having recently emitted a signal.
func (c *Cache) MarkActive(symbol string) {
	c.mu.Lock()
	c.active[symbol] = time.Now()
	c.mu.Unlock()
}

// IsActive reports whether the symbol has been marked active.
func (c *Cache) IsActive(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.active[symbol]
	return ok
}

// ActiveSymbols lists every symbol currently flagged active.
func (c *Cache) ActiveSymbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.active))
	for sym := range c.active {
		out = append(out, sym)
	}
	return out
}

// Len reports the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
