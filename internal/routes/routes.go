package routes

import (
	"net/http"

	"github.com/ghostface-security/Stock-Trading-Simulator/internal/handlers"
	appmw "github.com/ghostface-security/Stock-Trading-Simulator/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func NewRoutes(h *handlers.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/forgot-password", h.ForgotPassword)
	r.Post("/auth/reset-password", h.ResetPassword)
	r.With(appmw.Authenticated).Get("/auth/me", h.Me)
	r.With(appmw.Authenticated).Delete("/auth/account", h.DeleteAccount)

	r.With(appmw.Authenticated).Get("/wallet", h.Wallet)
	r.With(appmw.Authenticated).Get("/transactions", h.Transactions)
	r.With(appmw.Authenticated).Post("/wallet/deposit", h.Deposit)
	r.With(appmw.Authenticated).Post("/wallet/withdraw", h.Withdraw)
	r.With(appmw.Authenticated).Post("/wallet/transfer", h.Transfer)

	r.Get("/stocks/prices", h.Prices)
	r.With(appmw.Authenticated).Get("/portfolio", h.Portfolio)
	r.With(appmw.Authenticated).Post("/stocks/buy", h.BuyStock)
	r.With(appmw.Authenticated).Post("/stocks/sell", h.SellStock)

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	return r
}
