package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/ps-vitor/offplan-sys/backend/internal/api/handlers"
	"github.com/ps-vitor/offplan-sys/backend/internal/app"
	"github.com/ps-vitor/offplan-sys/backend/internal/config"
	"github.com/ps-vitor/offplan-sys/backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New("api", cfg.App.LogLevel)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("setup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	r := mux.NewRouter()
	handlers.NewAPIHandler(a.Projects, log).RegisterRoutes(r)
	scrapingHandler := handlers.NewScrapingHandler(a.Scraper, log)
	r.HandleFunc("/api/scrape", scrapingHandler.HandleScrape).Methods(http.MethodPost)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
}
