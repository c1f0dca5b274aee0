package market

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/store"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestFeed(t *testing.T) (*Feed, *gorm.DB) {
	t.Helper()
	db := openTestDB(t)
	return NewFeed(db, zap.NewNop(), time.Minute), db
}

func TestLoadSeedsEverySymbol(t *testing.T) {
	feed, db := newTestFeed(t)
	require.NoError(t, feed.Load())

	seedLo := decimal.RequireFromString("50.00")
	seedHi := decimal.RequireFromString("200.00")
	for _, symbol := range Symbols {
		price, ok := feed.Price(symbol)
		require.True(t, ok, symbol)
		require.True(t, price.GreaterThanOrEqual(seedLo), "%s seeded at %s", symbol, price)
		require.True(t, price.LessThanOrEqual(seedHi), "%s seeded at %s", symbol, price)
		require.GreaterOrEqual(t, price.Exponent(), int32(-2), "%s not rounded to cents", symbol)
	}

	var count int64
	require.NoError(t, db.Model(&models.StockPrice{}).Count(&count).Error)
	require.EqualValues(t, len(Symbols), count)
}

func TestLoadKeepsStoredPrices(t *testing.T) {
	feed, db := newTestFeed(t)
	stored := decimal.RequireFromString("123.45")
	require.NoError(t, db.Create(&models.StockPrice{Symbol: "AAPL", Price: stored}).Error)

	require.NoError(t, feed.Load())

	price, ok := feed.Price("AAPL")
	require.True(t, ok)
	require.True(t, stored.Equal(price), "stored price replaced: %s", price)
}

func TestTickStaysWithinBounds(t *testing.T) {
	feed, db := newTestFeed(t)
	require.NoError(t, feed.Load())
	before := feed.Snapshot()

	feed.tick()

	lo := decimal.RequireFromString("0.98")
	hi := decimal.RequireFromString("1.021") // rounding to cents can nudge past 1.02 on small prices
	for _, symbol := range Symbols {
		after, ok := feed.Price(symbol)
		require.True(t, ok, symbol)
		require.GreaterOrEqual(t, after.Exponent(), int32(-2), "%s not rounded to cents", symbol)

		ratio := after.Div(before[symbol])
		require.True(t, ratio.GreaterThanOrEqual(lo) && ratio.LessThanOrEqual(hi),
			"%s moved from %s to %s", symbol, before[symbol], after)

		var row models.StockPrice
		require.NoError(t, db.Where("symbol = ?", symbol).First(&row).Error)
		require.True(t, after.Equal(row.Price), "%s cache %s diverges from store %s", symbol, after, row.Price)
	}
}

func TestTickFloorsAtOne(t *testing.T) {
	feed, db := newTestFeed(t)
	require.NoError(t, feed.Load())

	floor := decimal.RequireFromString("1.00")
	require.NoError(t, db.Model(&models.StockPrice{}).Where("symbol = ?", "KO").Update("price", floor).Error)
	feed.mu.Lock()
	feed.prices["KO"] = floor
	feed.mu.Unlock()

	for i := 0; i < 20; i++ {
		feed.tick()
		price, _ := feed.Price("KO")
		require.True(t, price.GreaterThanOrEqual(floor), "price fell below floor: %s", price)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	feed, _ := newTestFeed(t)
	require.NoError(t, feed.Load())

	snap := feed.Snapshot()
	snap["AAPL"] = decimal.NewFromInt(-1)

	price, ok := feed.Price("AAPL")
	require.True(t, ok)
	require.True(t, price.IsPositive())
}
