package exchange_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/exchange"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/store"
	"github.com/glebarez/sqlite"
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

func TestGetOrCreateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	first, err := exchange.GetOrCreate(db)
	require.NoError(t, err)
	second, err := exchange.GetOrCreate(db)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", exchange.Username).Count(&users).Error)
	require.EqualValues(t, 1, users)

	var wallet models.Wallet
	require.NoError(t, db.Where("user_id = ?", first.ID).First(&wallet).Error)
	require.True(t, wallet.Balance.IsZero())
}

func TestGetOrCreateUnderConcurrentFirstCalls(t *testing.T) {
	db := openTestDB(t)

	const callers = 8
	var wg sync.WaitGroup
	accounts := make([]*models.User, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			accounts[i], errs[i] = exchange.GetOrCreate(db)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		require.Equal(t, accounts[0].ID, accounts[i].ID, "caller %d", i)
	}

	var users int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", exchange.Username).Count(&users).Error)
	require.EqualValues(t, 1, users)

	var wallets int64
	require.NoError(t, db.Model(&models.Wallet{}).Where("user_id = ?", accounts[0].ID).Count(&wallets).Error)
	require.EqualValues(t, 1, wallets)
}

func TestGetOrCreateCompletesMissingWallet(t *testing.T) {
	db := openTestDB(t)

	// Account row exists but its wallet is gone; a half-finished bootstrap
	// must still converge.
	orphan := models.User{Username: exchange.Username, PasswordHash: "NO_LOGIN"}
	require.NoError(t, db.Create(&orphan).Error)

	account, err := exchange.GetOrCreate(db)
	require.NoError(t, err)
	require.Equal(t, orphan.ID, account.ID)

	var wallet models.Wallet
	require.NoError(t, db.Where("user_id = ?", account.ID).First(&wallet).Error)
	require.True(t, wallet.Balance.IsZero())
}

func TestIsExchange(t *testing.T) {
	require.True(t, exchange.IsExchange("Global_Exchange"))
	require.False(t, exchange.IsExchange("global_exchange"))
	require.False(t, exchange.IsExchange("alice"))
}
