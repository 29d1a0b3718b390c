package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/studiogamma/centralino/internal/classify"
	"github.com/studiogamma/centralino/internal/config"
	"github.com/studiogamma/centralino/internal/dialog"
	"github.com/studiogamma/centralino/internal/httpapi"
	"github.com/studiogamma/centralino/internal/observability"
	"github.com/studiogamma/centralino/internal/registry"
	"github.com/studiogamma/centralino/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()

	var fallback classify.Fallback
	if cfg.GeminiAPIKey != "" {
		gemini, err := classify.NewGeminiClassifier(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("gemini classifier init failed: %v", err)
		}
		fallback = gemini
		log.Printf("classifier: keyword fast path with gemini fallback (%s)", cfg.GeminiModel)
	} else {
		log.Printf("classifier: keyword-only (GEMINI_API_KEY not set)")
	}
	engine := classify.NewEngine(fallback, cfg.ClassifierTimeout)

	calls := registry.NewManager(cfg.SessionInactivityTimeout)
	calls.SetExpireHook(func(rec *registry.Record) {
		log.Printf("call %s expired after %d turns", rec.SessionID, rec.TurnCount)
		metrics.CallEvent("expired")
		metrics.ActiveCalls.Set(float64(calls.ActiveCount()))
	})

	orchestrator := dialog.NewOrchestrator(engine, st, metrics, dialog.Options{
		OpenHour:               cfg.OfficeOpenHour,
		CloseHour:              cfg.OfficeCloseHour,
		ReplyCharLimit:         cfg.ReplyCharLimit,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		AnswerTaxQueries:       cfg.TaxQueryMode == "answer",
	})
	if cfg.TaxQueryMode == "answer" {
		if gemini, ok := fallback.(*classify.GeminiClassifier); ok {
			orchestrator.SetAnswerEngine(gemini)
		} else {
			log.Printf("TAX_QUERY_MODE=answer requires GEMINI_API_KEY, tax queries will be deflected")
		}
	}

	api := httpapi.New(cfg, calls, orchestrator, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	calls.StartJanitor(runCtx, cfg.SessionJanitorInterval)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
