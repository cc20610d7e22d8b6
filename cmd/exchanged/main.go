// Command exchanged is the exchange server entrypoint: it loads config,
// opens the store, and wires matching/auth/ratelimit/httpapi together with
// no process-wide globals (spec.md §9 design note, replacing the source's
// module-level FastAPI `app`).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"ledger-exchange/auth"
	"ledger-exchange/config"
	"ledger-exchange/httpapi"
	"ledger-exchange/matching"
	"ledger-exchange/ratelimit"
	"ledger-exchange/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal("exchanged exited", "err", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBLocation)
	if err != nil {
		return err
	}
	if err := st.Bootstrap(context.Background()); err != nil {
		return err
	}

	engine := matching.New(st)
	authSvc := auth.New(st, cfg.SecretKey, cfg.TokenTTL, cfg.StartingBalance, cfg.StartingStock)
	limiter := ratelimit.New(st, cfg.RateLimitBurst, cfg.RateLimitWindow)
	server := httpapi.New(st, engine, authSvc, limiter, cfg.TokenURL)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-stop:
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	}
	return nil
}
