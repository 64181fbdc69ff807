// brandrank runs one evaluation end to end from the command line and
// prints the report as markdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/goaiso/brandrank/internal/config"
	"github.com/goaiso/brandrank/internal/evaluation"
	"github.com/goaiso/brandrank/internal/llm"
	"github.com/goaiso/brandrank/internal/render"
	"github.com/goaiso/brandrank/internal/store"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		productType = flag.String("product", "", "Product category to survey (required)")
		criteriaCSV = flag.String("criteria", "", "Comma-separated criteria, 2 to 5 (required)")
		country     = flag.String("country", "", "Optional country qualifier")
		location    = flag.String("location", "", "Optional location qualifier")
		dbPath      = flag.String("db", "", "SQLite database path (overrides config)")
	)
	flag.Parse()

	if strings.TrimSpace(*productType) == "" || strings.TrimSpace(*criteriaCSV) == "" {
		log.Fatal("--product and --criteria are required")
	}
	var criteria []string
	for _, c := range strings.Split(*criteriaCSV, ",") {
		if c = strings.TrimSpace(c); c != "" {
			criteria = append(criteria, c)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ev, err := svc.Create(ctx, *productType, criteria, *country, *location)
	if err != nil {
		log.Fatalf("create evaluation: %v", err)
	}
	log.Printf("created evaluation %s", ev.ID)

	if _, err := svc.Run(ctx, ev.ID); err != nil {
		log.Fatalf("run evaluation: %v", err)
	}

	report, err := svc.Report(ctx, ev.ID)
	if err != nil {
		log.Fatalf("build report: %v", err)
	}
	fmt.Print(render.BuildReportMarkdown(report))
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
