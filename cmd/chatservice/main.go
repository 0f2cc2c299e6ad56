package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MegaGrindStone/dashboard-chat/internal/backend"
	"github.com/MegaGrindStone/dashboard-chat/internal/services"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "dashboardchat")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfgFile, err := os.Open(filepath.Join(cfgPath, "chatservice.yaml"))
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := cfg.logger()
	if err != nil {
		log.Fatal(err)
	}

	answerer, err := cfg.LLM.answerer(cfg.SystemPrompt, logger)
	if err != nil {
		panic(err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(cfgPath, "chatservice.db")
	}
	boltDB, err := services.NewBoltDB(dbPath)
	if err != nil {
		panic(err)
	}

	svc := backend.NewService(answerer, boltDB, cfg.Triggers, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", svc.HandleChat)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatal(fmt.Errorf("error listening on %s: %w", srv.Addr, err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Chat service starting", slog.String("port", cfg.Port), slog.String("db", dbPath))
	if err := serve(ctx, srv, ln, boltDB, logger); err != nil {
		logger.Error("Server error", slog.String("err", err.Error()))
	}
}

// serve runs srv on ln until ctx is done, then shuts it down. The store is closed only after the
// in-flight requests have finished, since they may still be writing to it.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, store io.Closer, logger *slog.Logger) error {
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store", slog.String("err", err.Error()))
		}
	}()

	serverErrors := make(chan error, 1)

	go func() {
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		return err

	case <-ctx.Done():
		logger.Info("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
		return nil
	}
}
