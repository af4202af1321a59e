package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"docs-sentinel/pkg/config"
	"docs-sentinel/pkg/db"
	"docs-sentinel/pkg/fetch"
	"docs-sentinel/pkg/gh"
	"docs-sentinel/pkg/mirror"
	"docs-sentinel/pkg/threat"

	"github.com/joho/godotenv"
)

func main() {
	var (
		configPath  string
		concurrency int
		skipIndex   bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")
	flag.IntVar(&concurrency, "concurrency", 0, "Override the configured worker pool size")
	flag.BoolVar(&skipIndex, "skip-index", false, "Skip invoking the external indexer after mirroring")
	flag.Parse()

	logger := log.New(os.Stdout, "[DocsSentinel] ", log.LstdFlags)

	// Optional .env for local runs; absence is not an error.
	_ = godotenv.Load()

	// Override values from environment variables if present
	if envVal := os.Getenv("SENTINEL_CONFIG"); envVal != "" {
		configPath = envVal
	}
	if envVal := os.Getenv("SENTINEL_CONCURRENCY"); envVal != "" {
		if val, err := strconv.Atoi(envVal); err == nil {
			concurrency = val
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if envVal := os.Getenv("GITHUB_TOKEN"); envVal != "" && cfg.GitHub.AppID == 0 {
		cfg.GitHub.Token = envVal
	}
	if concurrency > 0 {
		cfg.Mirror.Concurrency = concurrency
	}

	// Set up context with cancellation on termination signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	httpClient, err := gh.NewHTTPClient(cfg.GitHub.Token, cfg.GitHub.AppID, cfg.GitHub.InstallationID, cfg.GitHub.PrivateKeyPath, logger)
	if err != nil {
		logger.Fatalf("Failed to create GitHub client: %v", err)
	}

	coordinator := buildCoordinator(cfg, httpClient, logger)

	logger.Printf("Starting mirror run: %d targets, concurrency=%d", len(cfg.Targets), cfg.Mirror.Concurrency)
	results, err := coordinator.Run(ctx)
	if err != nil {
		logger.Fatalf("Mirror run failed: %v", err)
	}

	skipped := 0
	for _, res := range results {
		if res.Err != nil {
			skipped++
			continue
		}
		logger.Printf("Target %s: %d/%d files mirrored", res.Target, res.Succeeded, res.Attempted)
	}
	if skipped == len(results) && len(results) > 0 {
		logger.Fatalf("All %d targets failed", skipped)
	}

	if !skipIndex && cfg.Indexer.Command != "" {
		if err := runIndexer(ctx, cfg, logger); err != nil {
			logger.Fatalf("Indexer failed: %v", err)
		}
	}

	printConfigSnippet(cfg)
	logger.Println("Mirror run completed successfully")
}

func buildCoordinator(cfg *config.Config, httpClient *http.Client, logger *log.Logger) *mirror.Coordinator {
	fetcher := fetch.NewClient(httpClient, time.Duration(cfg.Fetch.BackoffSecs)*time.Second, logger)

	resolver := gh.NewResolver(
		fetcher,
		cfg.Fetch.APIBaseURL,
		cfg.Fetch.RawBaseURL,
		time.Duration(cfg.Fetch.ManifestTimeoutSecs)*time.Second,
		cfg.Fetch.ManifestRetries,
		cfg.Mirror.AllowedExtensions,
		logger,
	)

	syncer := mirror.NewSynchronizer(
		fetcher,
		time.Duration(cfg.Fetch.ContentTimeoutSecs)*time.Second,
		cfg.Fetch.ContentRetries,
		cfg.Mirror.Concurrency,
		cfg.Mirror.ProgressEvery,
		logger,
	)

	reporter := threat.NewReporter(cfg.Report.Path, logger)

	var store mirror.DetectionStore
	if cfg.DB.Host != "" {
		database, err := db.NewDB(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name)
		if err != nil {
			// Detection history is a convenience, not part of the run contract.
			logger.Printf("Detection database unavailable, continuing without history: %v", err)
		} else {
			store = database
		}
	}

	return mirror.NewCoordinator(cfg.Targets, resolver, syncer, reporter, store, logger)
}

// runIndexer hands the finished mirror to the external indexing tool. A
// non-zero exit leaves the mirror without a matching index, which is an
// inconsistent end state, so it is fatal for the run.
func runIndexer(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	args := append([]string{}, cfg.Indexer.Args...)
	args = append(args, cfg.Mirror.Root)
	if cfg.Indexer.Glob != "" {
		args = append(args, cfg.Indexer.Glob)
	}

	logger.Printf("Rebuilding index: %s %v", cfg.Indexer.Command, args)
	cmd := exec.CommandContext(ctx, cfg.Indexer.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", cfg.Indexer.Command, err)
	}
	return nil
}

// printConfigSnippet prints a ready-to-paste stanza pointing a docs consumer
// at the freshly built mirror.
func printConfigSnippet(cfg *config.Config) {
	fmt.Println()
	fmt.Println("Add the mirrored docs to your tool configuration:")
	fmt.Println()
	fmt.Println("  docs:")
	for _, target := range cfg.Targets {
		fmt.Printf("    - name: %s\n", target.Name)
		fmt.Printf("      root: %s\n", target.DestPath)
		if cfg.Indexer.Glob != "" {
			fmt.Printf("      glob: %q\n", cfg.Indexer.Glob)
		}
	}
	fmt.Println()
}
