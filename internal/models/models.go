package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;size:80;not null"`
	PasswordHash string `gorm:"size:128;not null"`
}

// Wallet is the single cash balance of a user. Balance is maintained
// incrementally by the ledger and must stay consistent with the sum of the
// user's transactions.
type Wallet struct {
	gorm.Model
	UserID  uint64          `gorm:"uniqueIndex;not null"`
	Balance decimal.Decimal `gorm:"type:numeric;not null"`
}

// Transaction is an append-only audit record. Rows are never updated.
type Transaction struct {
	gorm.Model
	UserID uint64          `gorm:"index;not null"`
	Type   string          `gorm:"size:100;not null"`
	Amount decimal.Decimal `gorm:"type:numeric;not null"`
}

// Holding tracks shares of one symbol for one user. Quantity is positive
// while the row exists; the row is removed when it reaches zero.
type Holding struct {
	gorm.Model
	UserID    uint64          `gorm:"not null;uniqueIndex:idx_holdings_user_symbol"`
	Symbol    string          `gorm:"size:10;not null;uniqueIndex:idx_holdings_user_symbol"`
	Quantity  int64           `gorm:"not null"`
	CostBasis decimal.Decimal `gorm:"type:numeric;not null"`
}

type StockPrice struct {
	Symbol    string          `gorm:"primaryKey;size:10"`
	Price     decimal.Decimal `gorm:"type:numeric;not null"`
	UpdatedAt time.Time
}

type PasswordResetToken struct {
	gorm.Model
	UserID    uint64    `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
