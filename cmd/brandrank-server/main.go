package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/goaiso/brandrank/internal/config"
	"github.com/goaiso/brandrank/internal/evaluation"
	"github.com/goaiso/brandrank/internal/httpapi"
	"github.com/goaiso/brandrank/internal/llm"
	"github.com/goaiso/brandrank/internal/render"
	"github.com/goaiso/brandrank/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (default: $BRANDRANK_CONFIG or brandrank.yaml)")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("build provider: %v", err)
	}

	executor := evaluation.NewExecutor(provider, db).
		WithRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff)
	runner := evaluation.NewRunner(db, executor)
	svc := evaluation.NewService(db, runner)

	handler := httpapi.NewServer(svc, db, render.NewChromiumPDFRenderer())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	go func() {
		log.Printf("brandrank listening on %s (db=%s, provider=%s)", cfg.HTTPAddr, cfg.DBPath, provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func buildProvider(cfg config.Config) (llm.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropicProviderFromEnv()
	default:
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.RequestTimeout,
		})
	}
}
