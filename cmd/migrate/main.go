package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/turnere/Migrator-Tools/pkg/config"
	"github.com/turnere/Migrator-Tools/pkg/logger"
	"github.com/turnere/Migrator-Tools/pkg/migration"
	"github.com/turnere/Migrator-Tools/pkg/progress"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "migrate.yaml", "Path to configuration file (JSON or YAML)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (default from config)")
	mode := flag.String("mode", "", "Run mode: export, import, migrate, transform (default from config)")
	resources := flag.String("resource", "", "Comma-separated resource name globs to run (default all)")
	ids := flag.String("ids", "", "Comma-separated source ids to fetch instead of paging")
	dryRun := flag.Bool("dry-run", false, "Transform records but do not create anything")
	runID := flag.String("run-id", "", "Identifier stored with every summary (default random)")
	noProgress := flag.Bool("no-progress", false, "Disable progress bars")
	help := flag.Bool("help", false, "Display help information")
	flag.Parse()

	// Display help if requested
	if *help {
		displayUsage()
		os.Exit(0)
	}

	log := logger.New()

	// Load configuration. The file is validated once the environment and
	// command-line overrides are applied.
	log.Info("Loading configuration...")
	cfg, err := config.ReadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *dryRun {
		cfg.DryRun = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.SetLevel(cfg.LogLevel)
	if err := log.SetFormat(cfg.LogFormat); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	if cfg.LogFile != "" {
		if err := log.TeeToFile(cfg.LogFile); err != nil {
			log.Fatalf("Failed to configure logging: %v", err)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals. Records already created stay created; the
	// current record stops retrying and summaries are still written.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info("Received interrupt signal. Shutting down...")
		cancel()
		<-signalChan
		log.Close()
		os.Exit(130)
	}()

	migrator := migration.NewMigrator(cfg, log)

	// os.Exit skips deferred calls, so every exit path closes explicitly
	shutdown := func(code int) {
		if err := migrator.Close(context.Background()); err != nil {
			log.Errorf("Error closing summary writers: %v", err)
		}
		if err := log.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", err)
		}
		if code != 0 {
			os.Exit(code)
		}
	}

	var bars *progress.Bars
	if !*noProgress {
		bars = progress.NewBars(os.Stderr)
		migrator.SetProgress(bars)
	}

	opts := migration.Options{Resources: *resources, RunID: *runID}
	if *ids != "" {
		for _, id := range strings.Split(*ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.IDs = append(opts.IDs, id)
			}
		}
	}

	if err := migrator.Prepare(ctx, opts); err != nil {
		log.Errorf("Setup failed: %v", err)
		shutdown(1)
	}

	startTime := time.Now()
	log.Infof("Starting %s run", cfg.Mode)
	if cfg.DryRun {
		log.Info("Dry run: nothing will be created")
	}

	runErr := migrator.Start(ctx)
	if bars != nil {
		bars.Wait()
	}

	for _, s := range migrator.Summaries() {
		progress.PrintSummary(os.Stdout, s)
	}

	if runErr != nil {
		// Check if the error is due to context cancellation (Ctrl+C)
		if errors.Is(runErr, context.Canceled) {
			log.Info("Process stopped due to user interrupt (Ctrl+C)")
		} else {
			log.Errorf("Error during migration process: %v", runErr)
			shutdown(1)
		}
	}

	duration := time.Since(startTime)
	log.Infof("Run completed in %.2f seconds", duration.Seconds())
	shutdown(0)
}

// displayUsage displays usage information
func displayUsage() {
	fmt.Println("\nHubSpot and SalesLoft Resource Migrator")
	fmt.Println("=======================================")
	fmt.Println("Usage: migrate [options]")
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println("Environment overrides:")
	fmt.Println("  MIGRATE_LOG_LEVEL, MIGRATE_LOG_FORMAT, MIGRATE_LOG_FILE, MIGRATE_MODE,")
	fmt.Println("  MIGRATE_MAX_ATTEMPTS, MIGRATE_HTTP_TIMEOUT_SECONDS, MIGRATE_DRY_RUN")
	fmt.Println("Examples:")
	fmt.Println("  migrate -config=migrate.yaml")
	fmt.Println("  migrate -mode=export -resource='hubspot-*'")
	fmt.Println("  migrate -resource=emails -ids=1234,5678 -dry-run -log-level=debug")
}
