package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghostface-security/Stock-Trading-Simulator/configs"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/handlers"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/ledger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/logger"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/market"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/routes"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/seed"
	"github.com/ghostface-security/Stock-Trading-Simulator/internal/store"
	"go.uber.org/zap"
)

func main() {
	logger.Init()
	defer logger.Log.Sync()

	configs.LoadConfig()
	store.NewDB()
	store.DBMigrate()

	tick := time.Duration(configs.AppConfig.Market.TickIntervalSeconds) * time.Second
	feed := market.NewFeed(store.DB, logger.Log, tick)
	if err := feed.Load(); err != nil {
		logger.Log.Fatal("price feed init failed", zap.Error(err))
	}

	svc := ledger.New(store.DB, feed, logger.Log)
	seed.Run(store.DB, svc)

	feedCtx, stopFeed := context.WithCancel(context.Background())
	go feed.Run(feedCtx)

	h := handlers.New(store.DB, svc, feed)
	router := routes.NewRoutes(h)

	srv := &http.Server{
		Addr:         configs.AppConfig.Server.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Log.Info("shutting down server...")
	stopFeed()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		logger.Log.Error("db close skipped, reason:", zap.Error(err))
	} else {
		sqlDB.Close()
		logger.Log.Info("db closed")
	}

	logger.Log.Info("server stopped")
}
