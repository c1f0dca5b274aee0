// Package market holds the synthetic price feed. Prices follow a bounded
// random walk advanced by a single background ticker; reads come from an
// in-memory cache that always reflects the last committed value.
package market

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Symbols is the fixed set of tradable stocks.
var Symbols = []string{"AAPL", "GOOG", "MSFT", "AMZN", "TSLA", "NFLX", "SBUX", "NKE", "KO"}

var Names = map[string]string{
	"AAPL": "Apple Inc.",
	"GOOG": "Alphabet Inc.",
	"MSFT": "Microsoft Corp.",
	"AMZN": "Amazon.com Inc.",
	"TSLA": "Tesla, Inc.",
	"NFLX": "Netflix, Inc.",
	"SBUX": "Starbucks Corp.",
	"NKE":  "NIKE, Inc.",
	"KO":   "The Coca-Cola Company",
}

const (
	seedMin  = 50.0
	seedMax  = 200.0
	maxDrift = 0.02
)

var floorPrice = decimal.NewFromInt(1)

// Feed caches the current price per symbol. The store is the source of
// truth: every tick writes the new price to the store first and only then
// publishes it to the cache.
type Feed struct {
	db       *gorm.DB
	log      *zap.Logger
	interval time.Duration
	rng      *rand.Rand

	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewFeed(db *gorm.DB, log *zap.Logger, interval time.Duration) *Feed {
	return &Feed{
		db:       db,
		log:      log,
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		prices:   make(map[string]decimal.Decimal, len(Symbols)),
	}
}

// Load fills the cache from stored prices, seeding any symbol that has no
// row yet with a price drawn uniformly from [50.00, 200.00].
func (f *Feed) Load() error {
	var stored []models.StockPrice
	if err := f.db.Find(&stored).Error; err != nil {
		return fmt.Errorf("load stock prices: %w", err)
	}

	known := make(map[string]decimal.Decimal, len(stored))
	for _, row := range stored {
		known[row.Symbol] = row.Price
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, symbol := range Symbols {
		price, ok := known[symbol]
		if !ok {
			price = f.seedPrice()
			row := models.StockPrice{Symbol: symbol, Price: price}
			if err := f.db.Create(&row).Error; err != nil {
				return fmt.Errorf("seed price for %s: %w", symbol, err)
			}
		}
		f.prices[symbol] = price
	}
	return nil
}

// Run advances prices on the configured interval until ctx is cancelled.
// It is the only writer of price state.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.log.Info("price feed started", zap.Duration("interval", f.interval))
	for {
		select {
		case <-ctx.Done():
			f.log.Info("price feed stopped")
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

// tick perturbs each symbol by a uniform factor in [-2%, +2%], floors at
// 1.00 and rounds to cents. Store write failures keep the previous cached
// value for that symbol.
func (f *Feed) tick() {
	for _, symbol := range Symbols {
		f.mu.RLock()
		old := f.prices[symbol]
		f.mu.RUnlock()

		drift := (f.rng.Float64()*2 - 1) * maxDrift
		next := old.Mul(decimal.NewFromFloat(1 + drift))
		if next.LessThan(floorPrice) {
			next = floorPrice
		}
		next = next.Round(2)

		err := f.db.Model(&models.StockPrice{}).
			Where("symbol = ?", symbol).
			Update("price", next).Error
		if err != nil {
			f.log.Warn("price update not persisted", zap.String("symbol", symbol), zap.Error(err))
			continue
		}

		f.mu.Lock()
		f.prices[symbol] = next
		f.mu.Unlock()
	}
}

// Price returns the current price of symbol, or false if it is not tracked.
func (f *Feed) Price(symbol string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	price, ok := f.prices[symbol]
	return price, ok
}

// Snapshot returns a copy of all current prices.
func (f *Feed) Snapshot() map[string]decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(f.prices))
	for symbol, price := range f.prices {
		out[symbol] = price
	}
	return out
}

func (f *Feed) seedPrice() decimal.Decimal {
	return decimal.NewFromFloat(seedMin + f.rng.Float64()*(seedMax-seedMin)).Round(2)
}
