// Package holdings tracks per-user share positions and their weighted
// average cost basis. All functions operate on the caller's open gorm
// transaction so that holding mutations commit atomically with the wallet
// and transaction writes of a trade.
package holdings

import (
	"errors"
	"fmt"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/store"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNoPosition  = errors.New("no position in symbol")
	ErrOversell    = errors.New("not enough shares to sell")
	ErrBadQuantity = errors.New("quantity must be a positive integer")
)

// costBasisScale bounds the stored precision of the weighted average.
// Eight fractional digits survive a store round-trip unchanged on every
// supported column affinity.
const costBasisScale = 8

// Get returns the locked holding for (userID, symbol), or nil if the user
// has no position.
func Get(tx *gorm.DB, userID uint64, symbol string) (*models.Holding, error) {
	var h models.Holding
	err := store.ForUpdate(tx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load holding %s: %w", symbol, err)
	}
	return &h, nil
}

// ApplyBuy adds quantity shares bought for totalCost. An existing position
// gets a weighted-average cost basis; a new one starts at the purchase
// price. The cost basis is kept at costBasisScale decimal places.
func ApplyBuy(tx *gorm.DB, userID uint64, symbol string, quantity int64, totalCost, price decimal.Decimal) (*models.Holding, error) {
	if quantity <= 0 {
		return nil, ErrBadQuantity
	}

	h, err := Get(tx, userID, symbol)
	if err != nil {
		return nil, err
	}
	if h == nil {
		h = &models.Holding{UserID: userID, Symbol: symbol, Quantity: quantity, CostBasis: price}
		if err := tx.Create(h).Error; err != nil {
			return nil, fmt.Errorf("create holding %s: %w", symbol, err)
		}
		return h, nil
	}

	newQuantity := h.Quantity + quantity
	oldValue := h.CostBasis.Mul(decimal.NewFromInt(h.Quantity))
	h.CostBasis = oldValue.Add(totalCost).
		Div(decimal.NewFromInt(newQuantity)).
		Round(costBasisScale)
	h.Quantity = newQuantity
	if err := tx.Save(h).Error; err != nil {
		return nil, fmt.Errorf("update holding %s: %w", symbol, err)
	}
	return h, nil
}

// ApplySell removes quantity shares from a previously locked holding. The
// cost basis is untouched; a position that reaches zero is deleted so a
// zero-quantity row never persists. The delete is unscoped so a later
// re-buy can reuse the (user, symbol) slot.
func ApplySell(tx *gorm.DB, h *models.Holding, quantity int64) error {
	if quantity <= 0 {
		return ErrBadQuantity
	}
	if h == nil {
		return ErrNoPosition
	}
	if h.Quantity < quantity {
		return ErrOversell
	}

	h.Quantity -= quantity
	if h.Quantity == 0 {
		if err := tx.Unscoped().Delete(h).Error; err != nil {
			return fmt.Errorf("delete emptied holding %s: %w", h.Symbol, err)
		}
		return nil
	}
	if err := tx.Save(h).Error; err != nil {
		return fmt.Errorf("update holding %s: %w", h.Symbol, err)
	}
	return nil
}

// ListByUser returns every open position of a user.
func ListByUser(db *gorm.DB, userID uint64) ([]models.Holding, error) {
	var out []models.Holding
	if err := db.Where("user_id = ?", userID).Order("symbol").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	return out, nil
}
