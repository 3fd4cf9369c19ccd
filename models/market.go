package models

import "time"

// MarketDataEntry is the most recent known snapshot for one symbol.
type MarketDataEntry struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Open       float64   `json:"open,omitempty"`
	High       float64   `json:"high,omitempty"`
	Low        float64   `json:"low,omitempty"`
	Close      float64   `json:"close,omitempty"`
	Volume     float64   `json:"volume,omitempty"`
	LastUpdate time.Time `json:"last_update"`
}

// Merge overlays the supplied partial fields, leaving absent ones untouched.
func (e *MarketDataEntry) Merge(fields MarketDataFields, now time.Time) {
	if fields.Price != nil {
		e.Price = *fields.Price
	}
	if fields.Open != nil {
		e.Open = *fields.Open
	}
	if fields.High != nil {
		e.High = *fields.High
	}
	if fields.Low != nil {
		e.Low = *fields.Low
	}
	if fields.Close != nil {
		e.Close = *fields.Close
	}
	if fields.Volume != nil {
		e.Volume = *fields.Volume
	}
	e.LastUpdate = now
}

// MarketContext is the read-only bundle handed to signal processors.
type MarketContext struct {
	Entry       *MarketDataEntry
	Performance SymbolPerformance
	Active      bool
	LastUpdate  time.Time
	UpdateCount int64
}

// CachedPrice returns the cached price, or zero when no snapshot exists yet.
func (c MarketContext) CachedPrice() float64 {
	if c.Entry == nil {
		return 0
	}
	return c.Entry.Price
}
