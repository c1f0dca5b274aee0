package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ghostface-security/Stock-Trading-Simulator/configs"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/exchange"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/httputil"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/ledger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/logger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/market"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/middleware"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	DB     *gorm.DB
	Ledger *ledger.Service
	Feed   *market.Feed
}

func New(db *gorm.DB, svc *ledger.Service, feed *market.Feed) *Handler {
	return &Handler{DB: db, Ledger: svc, Feed: feed}
}

// writeLedgerError maps the ledger's rejection taxonomy onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		httputil.WriteError(w, http.StatusConflict, "operation conflicted with another request, please retry")
	default:
		logger.Log.Error("ledger operation failed", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) authedUserID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	userID, ok := middleware.UserID(r)
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if exchange.IsExchange(req.Username) {
		httputil.WriteError(w, http.StatusBadRequest, "username is reserved")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := models.User{Username: req.Username, PasswordHash: string(hash)}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		wallet := models.Wallet{UserID: uint64(user.ID), Balance: decimal.Zero}
		return tx.Create(&wallet).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			httputil.WriteError(w, http.StatusConflict, "username already exists")
			return
		}
		logger.Log.Error("failed to create user", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	// The exchange account stores a sentinel instead of a hash, so the
	// comparison below can never succeed for it.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	claims := jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(configs.AppConfig.JWT.SECRET))
	if err != nil {
		logger.Log.Error("failed to sign jwt", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{Token: signed})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		httputil.WriteError(w, http.StatusNotFound, "user not found")
		return
	}
	wallet, err := h.walletOf(userID)
	if err != nil {
		logger.Log.Error("failed to load wallet", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"balance":  wallet.Balance,
	})
}

// DeleteAccount removes the user and everything they own. Deletes are
// unscoped so the username and holding slots are immediately reusable.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		for _, owned := range []any{
			&models.Holding{},
			&models.Transaction{},
			&models.PasswordResetToken{},
			&models.Wallet{},
		} {
			if err := tx.Unscoped().Where("user_id = ?", userID).Delete(owned).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&models.User{}, userID).Error
	})
	if err != nil {
		logger.Log.Error("failed to delete account", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

// walletOf returns the user's wallet, creating a zero-balance one on first
// access.
func (h *Handler) walletOf(userID uint64) (*models.Wallet, error) {
	wallet := models.Wallet{UserID: userID, Balance: decimal.Zero}
	if err := h.DB.Where("user_id = ?", userID).FirstOrCreate(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}
