package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/quizit/quizit-service/internal/auth"
	"github.com/quizit/quizit-service/internal/cache"
	"github.com/quizit/quizit-service/internal/database"
	"github.com/quizit/quizit-service/internal/handlers"
	"github.com/quizit/quizit-service/internal/lobby"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx)
	if err != nil {
		logger.Fatalf("database connect: %v", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, database.DSN()); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	store := database.NewPGStore(pool)

	users, err := cache.Connect(ctx)
	if err != nil {
		logger.Fatalf("redis connect: %v", err)
	}
	if users == nil {
		logger.Info("REDIS_ADDR not set, user cache disabled")
	} else {
		defer users.Close()
	}

	verifier, err := auth.InitFromEnv()
	if err != nil {
		logger.Fatalf("auth key: %v", err)
	}
	if verifier.Enabled() {
		logger.Info("identity token verification enabled")
	} else {
		logger.Info("no auth key configured, trusting bare user ids")
	}

	registry := lobby.NewRegistry()
	server := handlers.NewServer(logger, store, users, verifier, registry)

	host := os.Getenv("HOST")
	if host == "" {
		host = "0.0.0.0"
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8765"
	}
	addr := net.JoinHostPort(host, port)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("listening on ws://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		server.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("server error: %v", err)
	}
	logger.Info("bye")
}
