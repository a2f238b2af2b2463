// Command pawnd runs the pawnshop layer daemon: the appraisal, lending, hub
// and reputation engines behind a REST API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/DFY-Network/pawnshop_layer/internal/app"
	"github.com/DFY-Network/pawnshop_layer/internal/app/httpapi"
	"github.com/DFY-Network/pawnshop_layer/internal/app/storage/postgres"
	"github.com/DFY-Network/pawnshop_layer/internal/config"
	"github.com/DFY-Network/pawnshop_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/pawnd.yaml", "path to the configuration file")
	flag.Parse()

	cfg := config.LoadOrDefault(*configPath)

	logOutput := os.Stdout
	if strings.EqualFold(cfg.Logging.Output, "stderr") {
		logOutput = os.Stderr
	}
	log := logger.New("pawnd", logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: logOutput,
	})

	stores := app.Stores{}
	if cfg.Database.Driver == "postgres" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.WithError(err).Fatal("failed to open database")
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.WithError(err).Fatal("failed to reach database")
		}
		store := postgres.New(db)
		stores = app.Stores{Hub: store, Assets: store, Lending: store, Reputation: store}
		log.Info("using postgres storage")
	} else {
		log.Info("using in-memory storage")
	}

	application, err := app.New(stores, app.Ledgers{}, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if admin := strings.TrimSpace(os.Getenv("PAWNSHOP_ADMIN")); admin != "" {
		if err := application.Hub.Bootstrap(ctx, admin); err != nil {
			log.WithError(err).Fatal("failed to bootstrap admin account")
		}
		log.WithField("admin", admin).Info("bootstrapped admin account")
	}

	if cfg.Audit.File != "" {
		sink, err := httpapi.NewFileAuditSink(cfg.Audit.File)
		if err != nil {
			log.WithError(err).Fatal("failed to open audit file")
		}
		defer sink.Close()
		application.Bus.Subscribe(sink.Record)
		log.WithField("file", cfg.Audit.File).Info("audit trail enabled")
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start application")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           httpapi.NewHandler(application),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown failed")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("application shutdown failed")
	}
	log.Info("pawnd stopped")
}
