package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/exchange"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/holdings"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DepositResult struct {
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// Deposit credits amount to the user's wallet. The exchange wallet is
// credited the same amount so the books stay balanced. No fee.
func (s *Service) Deposit(ctx context.Context, userID uint64, amount decimal.Decimal) (*DepositResult, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}

	var res DepositResult
	err := s.withRetry(ctx, func(tx *gorm.DB) error {
		if _, err := requireUser(tx, userID); err != nil {
			return err
		}
		userWallet, exchWallet, err := lockUserAndExchange(tx, userID)
		if err != nil {
			return err
		}

		userWallet.Balance = userWallet.Balance.Add(amount)
		exchWallet.Balance = exchWallet.Balance.Add(amount)
		if err := saveWallet(tx, userWallet); err != nil {
			return err
		}
		if err := saveWallet(tx, exchWallet); err != nil {
			return err
		}
		if err := appendTransaction(tx, userID, "Deposit", amount); err != nil {
			return err
		}

		res = DepositResult{Amount: amount, Balance: userWallet.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type WithdrawResult struct {
	Amount  decimal.Decimal `json:"amount"`
	Fee     decimal.Decimal `json:"fee"`
	Balance decimal.Decimal `json:"balance"`
}

// Withdraw debits amount plus a 0.5% fee from the user. The exchange wallet
// gives up only the amount itself; the fee stays behind as its gain.
func (s *Service) Withdraw(ctx context.Context, userID uint64, amount decimal.Decimal) (*WithdrawResult, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	fee := amount.Mul(withdrawalFeeRate).Round(2)
	totalDebit := amount.Add(fee)

	var res WithdrawResult
	err := s.withRetry(ctx, func(tx *gorm.DB) error {
		if _, err := requireUser(tx, userID); err != nil {
			return err
		}
		userWallet, exchWallet, err := lockUserAndExchange(tx, userID)
		if err != nil {
			return err
		}
		if userWallet.Balance.LessThan(totalDebit) {
			return fmt.Errorf("%w: withdrawal of %s plus fee %s exceeds balance", ErrInsufficientFunds, amount, fee)
		}

		userWallet.Balance = userWallet.Balance.Sub(totalDebit)
		exchWallet.Balance = exchWallet.Balance.Sub(amount)
		if err := saveWallet(tx, userWallet); err != nil {
			return err
		}
		if err := saveWallet(tx, exchWallet); err != nil {
			return err
		}
		if err := appendTransaction(tx, userID, "Withdrawal", amount.Neg()); err != nil {
			return err
		}
		if err := appendTransaction(tx, exchWallet.UserID, "Fee Collected", fee); err != nil {
			return err
		}

		res = WithdrawResult{Amount: amount, Fee: fee, Balance: userWallet.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type TransferResult struct {
	Amount    decimal.Decimal `json:"amount"`
	Recipient string          `json:"recipient"`
	Balance   decimal.Decimal `json:"balance"`
}

// Transfer moves amount from the sender to the named recipient. Fully
// peer-to-peer: no fee and the exchange account is uninvolved, so total
// cash across the two wallets is conserved.
func (s *Service) Transfer(ctx context.Context, senderID uint64, recipientUsername string, amount decimal.Decimal) (*TransferResult, error) {
	if err := validAmount(amount); err != nil {
		return nil, err
	}
	if exchange.IsExchange(recipientUsername) {
		return nil, fmt.Errorf("%w: recipient", ErrNotFound)
	}

	var res TransferResult
	err := s.withRetry(ctx, func(tx *gorm.DB) error {
		sender, err := requireUser(tx, senderID)
		if err != nil {
			return err
		}

		var recipient models.User
		err = tx.Where("username = ?", recipientUsername).First(&recipient).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: recipient %q", ErrNotFound, recipientUsername)
		}
		if err != nil {
			return fmt.Errorf("load recipient: %w", err)
		}
		recipientID := uint64(recipient.ID)
		if recipientID == senderID {
			return fmt.Errorf("%w: cannot transfer to yourself", ErrInvalidInput)
		}

		// Sender wallet may be lazily created; the recipient must
		// already have one. Locks go in ascending user-ID order.
		lock := func(id uint64) (*models.Wallet, error) {
			if id == senderID {
				return lockWallet(tx, id)
			}
			return lockExistingWallet(tx, id)
		}
		first, second := senderID, recipientID
		if recipientID < senderID {
			first, second = recipientID, senderID
		}
		a, err := lock(first)
		if err != nil {
			return err
		}
		b, err := lock(second)
		if err != nil {
			return err
		}
		senderWallet, recipientWallet := a, b
		if senderWallet.UserID != senderID {
			senderWallet, recipientWallet = b, a
		}

		if senderWallet.Balance.LessThan(amount) {
			return fmt.Errorf("%w: transfer of %s exceeds balance", ErrInsufficientFunds, amount)
		}

		senderWallet.Balance = senderWallet.Balance.Sub(amount)
		recipientWallet.Balance = recipientWallet.Balance.Add(amount)
		if err := saveWallet(tx, senderWallet); err != nil {
			return err
		}
		if err := saveWallet(tx, recipientWallet); err != nil {
			return err
		}

		out := fmt.Sprintf("Transfer Out to %s", recipient.Username)
		in := fmt.Sprintf("Transfer In from %s", sender.Username)
		if err := appendTransaction(tx, senderID, out, amount.Neg()); err != nil {
			return err
		}
		if err := appendTransaction(tx, recipientID, in, amount); err != nil {
			return err
		}

		res = TransferResult{Amount: amount, Recipient: recipient.Username, Balance: senderWallet.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type BuyResult struct {
	Symbol     string          `json:"symbol"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	Fee        decimal.Decimal `json:"fee"`
	TotalDebit decimal.Decimal `json:"total_debit"`
	Balance    decimal.Decimal `json:"balance"`
}

// BuyStock purchases quantity shares of symbol at the current feed price.
// The user pays cost plus a 1% fee; the exchange funds the cost and keeps
// the fee. The holding's cost basis becomes the weighted average of all
// lots.
func (s *Service) BuyStock(ctx context.Context, userID uint64, symbol string, quantity int64) (*BuyResult, error) {
	price, ok := s.prices.Price(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: unknown symbol %q", ErrNotFound, symbol)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidInput)
	}

	totalCost := price.Mul(decimal.NewFromInt(quantity))
	fee := totalCost.Mul(buyFeeRate).Round(2)
	totalDebit := totalCost.Add(fee)

	var res BuyResult
	err := s.withRetry(ctx, func(tx *gorm.DB) error {
		user, err := requireUser(tx, userID)
		if err != nil {
			return err
		}
		userWallet, exchWallet, err := lockUserAndExchange(tx, userID)
		if err != nil {
			return err
		}
		if userWallet.Balance.LessThan(totalDebit) {
			return fmt.Errorf("%w: need %s to buy %d shares of %s", ErrInsufficientFunds, totalDebit, quantity, symbol)
		}

		userWallet.Balance = userWallet.Balance.Sub(totalDebit)
		exchWallet.Balance = exchWallet.Balance.Add(fee).Sub(totalCost)
		if err := saveWallet(tx, userWallet); err != nil {
			return err
		}
		if err := saveWallet(tx, exchWallet); err != nil {
			return err
		}

		if _, err := holdings.ApplyBuy(tx, userID, symbol, quantity, totalCost, price); err != nil {
			return err
		}

		label := fmt.Sprintf("Buy %d shares of %s", quantity, symbol)
		if err := appendTransaction(tx, userID, label, totalCost.Neg()); err != nil {
			return err
		}
		feeLabel := fmt.Sprintf("Fee collected from %s for Buy %s", user.Username, symbol)
		if err := appendTransaction(tx, exchWallet.UserID, feeLabel, fee); err != nil {
			return err
		}

		res = BuyResult{
			Symbol:     symbol,
			Quantity:   quantity,
			Price:      price,
			TotalCost:  totalCost,
			Fee:        fee,
			TotalDebit: totalDebit,
			Balance:    userWallet.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type SellResult struct {
	Symbol      string          `json:"symbol"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	TotalSale   decimal.Decimal `json:"total_sale"`
	ProfitLoss  decimal.Decimal `json:"profit_loss"`
	Profitable  bool            `json:"profitable"`
	Fee         decimal.Decimal `json:"fee"`
	NetProceeds decimal.Decimal `json:"net_proceeds"`
	Balance     decimal.Decimal `json:"balance"`
}

// SellStock sells quantity shares of symbol at the current feed price. A 1%
// fee applies only when the sale closes at a profit against the weighted
// average cost basis; the result reports the profit/loss distinction.
func (s *Service) SellStock(ctx context.Context, userID uint64, symbol string, quantity int64) (*SellResult, error) {
	price, ok := s.prices.Price(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: unknown symbol %q", ErrNotFound, symbol)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidInput)
	}

	var res SellResult
	err := s.withRetry(ctx, func(tx *gorm.DB) error {
		user, err := requireUser(tx, userID)
		if err != nil {
			return err
		}
		// Wallets lock before the holding so buy and sell acquire
		// locks in the same order.
		userWallet, exchWallet, err := lockUserAndExchange(tx, userID)
		if err != nil {
			return err
		}
		holding, err := holdings.Get(tx, userID, symbol)
		if err != nil {
			return err
		}
		if holding == nil {
			return fmt.Errorf("%w: no position in %s", ErrNotFound, symbol)
		}
		if holding.Quantity < quantity {
			return fmt.Errorf("%w: not enough shares to sell", ErrInvalidInput)
		}

		qty := decimal.NewFromInt(quantity)
		totalSale := price.Mul(qty)
		costOfSold := holding.CostBasis.Mul(qty)
		profitLoss := totalSale.Sub(costOfSold)

		fee := decimal.Zero
		if profitLoss.IsPositive() {
			fee = totalSale.Mul(sellFeeRate).Round(2)
		}
		netProceeds := totalSale.Sub(fee)

		userWallet.Balance = userWallet.Balance.Add(netProceeds)
		exchWallet.Balance = exchWallet.Balance.Sub(totalSale)
		if fee.IsPositive() {
			exchWallet.Balance = exchWallet.Balance.Add(fee)
		}
		if err := saveWallet(tx, userWallet); err != nil {
			return err
		}
		if err := saveWallet(tx, exchWallet); err != nil {
			return err
		}

		if err := holdings.ApplySell(tx, holding, quantity); err != nil {
			return err
		}

		label := fmt.Sprintf("Sell %d shares of %s", quantity, symbol)
		if err := appendTransaction(tx, userID, label, netProceeds); err != nil {
			return err
		}
		if fee.IsPositive() {
			feeLabel := fmt.Sprintf("Fee collected from %s for Sell %s", user.Username, symbol)
			if err := appendTransaction(tx, exchWallet.UserID, feeLabel, fee); err != nil {
				return err
			}
		}

		res = SellResult{
			Symbol:      symbol,
			Quantity:    quantity,
			Price:       price,
			TotalSale:   totalSale,
			ProfitLoss:  profitLoss,
			Profitable:  profitLoss.IsPositive(),
			Fee:         fee,
			NetProceeds: netProceeds,
			Balance:     userWallet.Balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
