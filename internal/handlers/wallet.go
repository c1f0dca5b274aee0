package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/httputil"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/logger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	wallet, err := h.walletOf(userID)
	if err != nil {
		logger.Log.Error("failed to load wallet", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"balance": wallet.Balance})
}

type transactionView struct {
	ID        uint            `json:"id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Transactions returns the ten most recent entries, newest first.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var records []models.Transaction
	err := h.DB.Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(10).
		Find(&records).Error
	if err != nil {
		logger.Log.Error("failed to fetch transactions", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch transactions")
		return
	}

	views := make([]transactionView, 0, len(records))
	for _, t := range records {
		views = append(views, transactionView{
			ID:        t.ID,
			Type:      t.Type,
			Amount:    t.Amount,
			Timestamp: t.CreatedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Ledger.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Ledger.Withdraw(r.Context(), userID, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

type transferRequest struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Recipient == "" {
		httputil.WriteError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	res, err := h.Ledger.Transfer(r.Context(), userID, req.Recipient, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
