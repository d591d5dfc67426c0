package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crowsupport/chatbridge/internal/config"
	"github.com/crowsupport/chatbridge/internal/conversation"
	"github.com/crowsupport/chatbridge/internal/db"
	"github.com/crowsupport/chatbridge/internal/httpapi"
	"github.com/crowsupport/chatbridge/internal/obs"
	"github.com/crowsupport/chatbridge/internal/store/boltstore"
	"github.com/crowsupport/chatbridge/internal/store/rabbitmq"
	"github.com/crowsupport/chatbridge/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	logger := obs.NewLogger(cfg.Env)

	gdb := db.Connect(cfg.DBDSN)

	sessionSlot := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionSlotTTL)
	defer sessionSlot.Close()

	durableSlot, err := boltstore.Open(cfg.BoltPath)
	if err != nil {
		log.Fatalf("bolt open: %v", err)
	}
	defer durableSlot.Close()

	store := conversation.NewStore(sessionSlot, durableSlot, logger)

	rabbit, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit publisher: %v", err)
	}
	defer rabbit.Close()

	router := httpapi.NewRouter(gdb, cfg, logger, store, rabbit)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server started", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
}
