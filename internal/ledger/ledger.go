// Package ledger implements the money-moving core: deposit, withdraw,
// transfer, buy and sell. Each operation runs as one store transaction that
// locks the wallet rows it touches, so effects are all-or-nothing and
// concurrent operations on the same wallet serialize.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/exchange"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Fee rates. Sells are only charged when the sale closes at a profit.
var (
	withdrawalFeeRate = decimal.NewFromFloat(0.005)
	buyFeeRate        = decimal.NewFromFloat(0.01)
	sellFeeRate       = decimal.NewFromFloat(0.01)
)

// PriceSource supplies the current quote for a symbol. Satisfied by
// *market.Feed.
type PriceSource interface {
	Price(symbol string) (decimal.Decimal, bool)
}

type Service struct {
	db     *gorm.DB
	prices PriceSource
	log    *zap.Logger
}

func New(db *gorm.DB, prices PriceSource, log *zap.Logger) *Service {
	return &Service{db: db, prices: prices, log: log}
}

// maxAttempts bounds the transparent retry of conflicted transactions.
const maxAttempts = 3

// withRetry runs fn in a store transaction, retrying on lock conflicts.
// Rollback on any error inside fn is handled by gorm.
func (s *Service) withRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn)
		if err == nil || !retryable(err) {
			return err
		}
		s.log.Warn("ledger transaction conflict",
			zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(time.Duration(attempt) * 25 * time.Millisecond)
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}

// retryable covers lock conflicts and the duplicate-key error a lazy
// wallet create hits when two first operations race; the rerun finds the
// winner's row.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

// validAmount accepts positive amounts with at most cent precision.
func validAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if amount.Exponent() < -2 {
		return fmt.Errorf("%w: amount has sub-cent precision", ErrInvalidInput)
	}
	return nil
}

// requireUser verifies the acting identity still exists. Handlers
// authenticate, but the core checks ownership independently.
func requireUser(tx *gorm.DB, userID uint64) (*models.User, error) {
	var u models.User
	if err := tx.First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return &u, nil
}

// lockWallet locks the wallet row of userID, creating a zero-balance wallet
// inside the transaction if the user has none yet.
func lockWallet(tx *gorm.DB, userID uint64) (*models.Wallet, error) {
	var w models.Wallet
	err := store.ForUpdate(tx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		w = models.Wallet{UserID: userID, Balance: decimal.Zero}
		if cerr := tx.Create(&w).Error; cerr != nil {
			return nil, fmt.Errorf("create wallet for user %d: %w", userID, cerr)
		}
		return &w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet of user %d: %w", userID, err)
	}
	return &w, nil
}

// lockExistingWallet is lockWallet without the lazy create; a missing row
// is a data-integrity failure reported as ErrNotFound.
func lockExistingWallet(tx *gorm.DB, userID uint64) (*models.Wallet, error) {
	var w models.Wallet
	err := store.ForUpdate(tx).Where("user_id = ?", userID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: wallet of user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet of user %d: %w", userID, err)
	}
	return &w, nil
}

// lockUserAndExchange locks the user's wallet and the exchange wallet in
// ascending user-ID order so concurrent operations cannot deadlock.
func lockUserAndExchange(tx *gorm.DB, userID uint64) (user, exch *models.Wallet, err error) {
	exchAccount, err := exchange.GetOrCreate(tx)
	if err != nil {
		return nil, nil, err
	}
	exchID := uint64(exchAccount.ID)

	lock := func(id uint64) (*models.Wallet, error) {
		if id == exchID {
			return lockExistingWallet(tx, id)
		}
		return lockWallet(tx, id)
	}
	first, second := userID, exchID
	if exchID < userID {
		first, second = exchID, userID
	}
	a, err := lock(first)
	if err != nil {
		return nil, nil, err
	}
	b, err := lock(second)
	if err != nil {
		return nil, nil, err
	}
	if a.UserID == userID {
		return a, b, nil
	}
	return b, a, nil
}

func saveWallet(tx *gorm.DB, w *models.Wallet) error {
	if err := tx.Save(w).Error; err != nil {
		return fmt.Errorf("save wallet of user %d: %w", w.UserID, err)
	}
	return nil
}

func appendTransaction(tx *gorm.DB, userID uint64, kind string, amount decimal.Decimal) error {
	record := models.Transaction{UserID: userID, Type: kind, Amount: amount}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("record %q transaction: %w", kind, err)
	}
	return nil
}
