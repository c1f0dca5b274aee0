// Package exchange manages the Global_Exchange counterparty account. Its
// wallet absorbs the opposite side of every deposit, withdrawal and trade so
// that ledger entries always balance; fees accumulate in it as pure gain.
package exchange

import (
	"errors"
	"fmt"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Username of the singleton counterparty account.
const Username = "Global_Exchange"

// noLoginHash is stored instead of a bcrypt hash so the account can never
// authenticate.
const noLoginHash = "NO_LOGIN"

// IsExchange reports whether a username names the counterparty account.
// Registration and transfers must not target it.
func IsExchange(username string) bool {
	return username == Username
}

// GetOrCreate returns the exchange account, creating it and its zero-balance
// wallet on first call. Safe under concurrent first calls: the unique index
// on username makes the losing creator fall back to a fetch.
func GetOrCreate(db *gorm.DB) (*models.User, error) {
	var user models.User
	err := db.Where("username = ?", Username).First(&user).Error
	switch {
	case err == nil:
		return &user, ensureWallet(db, uint64(user.ID))
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("lookup exchange account: %w", err)
	}

	user = models.User{Username: Username, PasswordHash: noLoginHash}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the creation race; the winner's row is authoritative.
			var existing models.User
			if ferr := db.Where("username = ?", Username).First(&existing).Error; ferr != nil {
				return nil, fmt.Errorf("refetch exchange account: %w", ferr)
			}
			return &existing, ensureWallet(db, uint64(existing.ID))
		}
		return nil, fmt.Errorf("create exchange account: %w", err)
	}

	if err := ensureWallet(db, uint64(user.ID)); err != nil {
		return nil, err
	}
	return &user, nil
}

func ensureWallet(db *gorm.DB, userID uint64) error {
	wallet := models.Wallet{UserID: userID, Balance: decimal.Zero}
	err := db.Where("user_id = ?", userID).FirstOrCreate(&wallet).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}
