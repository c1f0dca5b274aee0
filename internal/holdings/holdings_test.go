package holdings_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/holdings"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/store"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
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

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApplyBuyCreatesPositionAtPurchasePrice(t *testing.T) {
	db := openTestDB(t)

	h, err := holdings.ApplyBuy(db, 1, "AAPL", 4, d("600.00"), d("150.00"))
	require.NoError(t, err)
	require.EqualValues(t, 4, h.Quantity)
	require.True(t, d("150.00").Equal(h.CostBasis))
}

func TestApplyBuyAveragesExistingPosition(t *testing.T) {
	db := openTestDB(t)

	_, err := holdings.ApplyBuy(db, 1, "AAPL", 10, d("1000.00"), d("100.00"))
	require.NoError(t, err)
	h, err := holdings.ApplyBuy(db, 1, "AAPL", 5, d("800.00"), d("160.00"))
	require.NoError(t, err)

	require.EqualValues(t, 15, h.Quantity)
	require.True(t, d("120").Equal(h.CostBasis), "got %s", h.CostBasis)
}

func TestApplyBuyRepeatingAverageSurvivesReload(t *testing.T) {
	db := openTestDB(t)

	_, err := holdings.ApplyBuy(db, 1, "AAPL", 1, d("100.00"), d("100.00"))
	require.NoError(t, err)
	h, err := holdings.ApplyBuy(db, 1, "AAPL", 2, d("100.00"), d("50.00"))
	require.NoError(t, err)

	// 200 / 3 does not terminate; it is kept at eight decimal places.
	require.True(t, d("66.66666667").Equal(h.CostBasis), "got %s", h.CostBasis)

	reloaded, err := holdings.Get(db, 1, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.True(t, h.CostBasis.Equal(reloaded.CostBasis),
		"stored %s, reloaded %s", h.CostBasis, reloaded.CostBasis)
}

func TestApplyBuyRejectsBadQuantity(t *testing.T) {
	db := openTestDB(t)

	_, err := holdings.ApplyBuy(db, 1, "AAPL", 0, d("0"), d("100.00"))
	require.ErrorIs(t, err, holdings.ErrBadQuantity)
}

func TestApplySellPartialKeepsCostBasis(t *testing.T) {
	db := openTestDB(t)

	h, err := holdings.ApplyBuy(db, 1, "AAPL", 10, d("1000.00"), d("100.00"))
	require.NoError(t, err)
	require.NoError(t, holdings.ApplySell(db, h, 4))

	reloaded, err := holdings.Get(db, 1, "AAPL")
	require.NoError(t, err)
	require.NotNil(t, reloaded)
	require.EqualValues(t, 6, reloaded.Quantity)
	require.True(t, d("100.00").Equal(reloaded.CostBasis))
}

func TestApplySellToZeroDeletesRow(t *testing.T) {
	db := openTestDB(t)

	h, err := holdings.ApplyBuy(db, 1, "AAPL", 3, d("300.00"), d("100.00"))
	require.NoError(t, err)
	require.NoError(t, holdings.ApplySell(db, h, 3))

	reloaded, err := holdings.Get(db, 1, "AAPL")
	require.NoError(t, err)
	require.Nil(t, reloaded)

	var count int64
	require.NoError(t, db.Model(&models.Holding{}).Unscoped().Count(&count).Error)
	require.Zero(t, count)
}

func TestApplySellRejectsOversell(t *testing.T) {
	db := openTestDB(t)

	h, err := holdings.ApplyBuy(db, 1, "AAPL", 2, d("200.00"), d("100.00"))
	require.NoError(t, err)
	require.ErrorIs(t, holdings.ApplySell(db, h, 3), holdings.ErrOversell)
	require.ErrorIs(t, holdings.ApplySell(db, nil, 1), holdings.ErrNoPosition)
}

func TestListByUserOnlyReturnsOwnPositions(t *testing.T) {
	db := openTestDB(t)

	_, err := holdings.ApplyBuy(db, 1, "MSFT", 1, d("300.00"), d("300.00"))
	require.NoError(t, err)
	_, err = holdings.ApplyBuy(db, 1, "AAPL", 2, d("300.00"), d("150.00"))
	require.NoError(t, err)
	_, err = holdings.ApplyBuy(db, 2, "KO", 5, d("300.00"), d("60.00"))
	require.NoError(t, err)

	list, err := holdings.ListByUser(db, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "AAPL", list[0].Symbol)
	require.Equal(t, "MSFT", list[1].Symbol)
}
