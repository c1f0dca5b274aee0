// Package seed bootstraps the database before the server accepts traffic:
// the exchange counterparty account and a few demo users with spending
// money. Running it again is a no-op.
package seed

import (
	"context"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/exchange"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/ledger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/logger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const seedPassword = "password123"

var demoUsers = []string{"demo1", "demo2", "demo3"}

var openingDeposit = decimal.RequireFromString("1000.00")

func Run(db *gorm.DB, svc *ledger.Service) {
	// Creating the exchange account here, before any request arrives,
	// keeps the per-request path a plain lookup.
	if _, err := exchange.GetOrCreate(db); err != nil {
		logger.Log.Fatal("exchange bootstrap failed", zap.Error(err))
	}

	var count int64
	if err := db.Model(&models.User{}).Where("username IN ?", demoUsers).Count(&count).Error; err != nil {
		logger.Log.Fatal("seed check failed", zap.Error(err))
	}
	if count >= int64(len(demoUsers)) {
		logger.Log.Info("seed already applied, skipping")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Fatal("failed to hash seed password", zap.Error(err))
	}

	for _, username := range demoUsers {
		user := models.User{Username: username, PasswordHash: string(hash)}
		if err := db.Where("username = ?", username).FirstOrCreate(&user).Error; err != nil {
			logger.Log.Fatal("failed to create demo user", zap.String("user", username), zap.Error(err))
		}
		// Fund through the ledger so the exchange side and the audit
		// trail stay consistent with every other deposit.
		if _, err := svc.Deposit(context.Background(), uint64(user.ID), openingDeposit); err != nil {
			logger.Log.Fatal("failed to fund demo user", zap.String("user", username), zap.Error(err))
		}
	}

	logger.Log.Info("seeded demo users", zap.Int("count", len(demoUsers)), zap.String("password", seedPassword))
}
