package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/holdings"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/httputil"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/logger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/market"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Prices is a read-only projection of the price feed.
func (h *Handler) Prices(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.Feed.Snapshot())
}

type holdingView struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Quantity    int64           `json:"quantity"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	Price       decimal.Decimal `json:"price"`
	MarketValue decimal.Decimal `json:"market_value"`
}

func (h *Handler) Portfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	positions, err := holdings.ListByUser(h.DB, userID)
	if err != nil {
		logger.Log.Error("failed to fetch portfolio", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to fetch portfolio")
		return
	}

	views := make([]holdingView, 0, len(positions))
	for _, p := range positions {
		price, _ := h.Feed.Price(p.Symbol)
		views = append(views, holdingView{
			Symbol:      p.Symbol,
			Name:        market.Names[p.Symbol],
			Quantity:    p.Quantity,
			CostBasis:   p.CostBasis,
			Price:       price,
			MarketValue: price.Mul(decimal.NewFromInt(p.Quantity)),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

type tradeRequest struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

func (h *Handler) BuyStock(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Ledger.BuyStock(r.Context(), userID, req.Symbol, req.Quantity)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) SellStock(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Ledger.SellStock(r.Context(), userID, req.Symbol, req.Quantity)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}
