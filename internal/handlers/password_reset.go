package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/httputil"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/logger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const resetTokenTTL = time.Hour

type forgotPasswordRequest struct {
	Username string `json:"username"`
}

// ForgotPassword issues a one-hour reset token. There is no mail delivery
// in the simulator; the token is written to the server log, as the operator
// is the one handing it out.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		httputil.WriteError(w, http.StatusBadRequest, "username is required")
		return
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		httputil.WriteError(w, http.StatusNotFound, "no account found with that username")
		return
	}

	token := uuid.NewString()
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		// A user can only have one live token.
		if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.PasswordResetToken{
			UserID:    uint64(user.ID),
			Token:     token,
			ExpiresAt: time.Now().UTC().Add(resetTokenTTL),
		}).Error
	})
	if err != nil {
		logger.Log.Error("failed to issue reset token", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	logger.Log.Info("password reset token issued",
		zap.String("username", user.Username), zap.String("token", token))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "a password reset token has been generated, check the server logs",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		httputil.WriteError(w, http.StatusBadRequest, "token and new_password are required")
		return
	}

	var reset models.PasswordResetToken
	if err := h.DB.Where("token = ?", req.Token).First(&reset).Error; err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "the password reset token is invalid or has expired")
		return
	}
	if reset.ExpiresAt.Before(time.Now().UTC()) {
		httputil.WriteError(w, http.StatusBadRequest, "the password reset token is invalid or has expired")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Error("failed to hash password", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", reset.UserID).
			Update("password_hash", string(hash)).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&reset).Error
	})
	if err != nil {
		logger.Log.Error("failed to reset password", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "password has been reset, please log in"})
}
