// Package cli implements the trawl command-line interface. Commands talk
// to the core exclusively through driving ports held in package-level
// variables; Execute wires real services into them, tests substitute
// mocks.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trawlhq/trawl/internal/adapters/driven/ai"
	"github.com/trawlhq/trawl/internal/adapters/driven/config/file"
	"github.com/trawlhq/trawl/internal/adapters/driven/storage/postgres"
	"github.com/trawlhq/trawl/internal/adapters/driven/storage/sqlite"
	"github.com/trawlhq/trawl/internal/chunker"
	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/core/ports/driving"
	"github.com/trawlhq/trawl/internal/core/services"
	"github.com/trawlhq/trawl/internal/extractors"
	"github.com/trawlhq/trawl/internal/logger"
	"github.com/trawlhq/trawl/internal/providers"
)

// version is stamped by Execute from the build.
var version = "dev"

// Services consumed by the commands. Execute fills them in via
// initServices; a nil service makes the commands that need it fail with
// a "not configured" error instead of panicking.
var (
	settingsService driving.SettingsManager
	providerService driving.ProviderManager
	syncService     driving.SyncRunner
	searchService   driving.Searcher
	askService      driving.Asker
	syncScheduler   driving.Scheduler

	configStore driven.ConfigStore
	indexStore  driven.Store

	// Closed on exit.
	appEmbedder driven.EmbeddingService
	appLLM      driven.LLMService
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "trawl",
	Short: "Index and search documents across local and cloud storage",
	Long: `Trawl synchronises documents from local directories, S3 buckets,
OneDrive drives and Google Drive folders into a semantic index, and
answers searches and questions from it.

Configure at least one provider with 'trawl provider add', then run
'trawl sync' to build the index.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// Execute wires the application services and runs the root command. The
// returned error has already been printed by cobra; the caller only
// chooses the exit code.
func Execute(v string) error {
	version = v

	// Service construction logs through the same logger the commands
	// use, so verbosity must be known before cobra parses anything.
	for _, arg := range os.Args[1:] {
		if arg == "--" {
			break
		}
		if arg == "-v" || arg == "--verbose" {
			logger.SetVerbose(true)
		}
	}

	initServices(context.Background())
	defer closeServices()

	return rootCmd.Execute()
}

// initServices builds the service graph bottom-up: config store,
// settings, index store, providers, AI adapters, then the core
// services. Each failure is logged and leaves the dependent services
// nil; commands that do not need them keep working, so a broken
// Postgres DSN never locks the user out of 'trawl settings'.
func initServices(ctx context.Context) {
	cfg, err := file.NewConfigStore("")
	if err != nil {
		logger.Warn("Opening config store: %v", err)
		return
	}
	configStore = cfg
	settingsService = services.NewSettingsService(cfg)

	settings, err := settingsService.Settings()
	if err != nil {
		logger.Warn("Invalid configuration: %v. Run 'trawl settings list' to review", err)
		return
	}

	store, err := openStore(ctx, settings)
	if err != nil {
		logger.Warn("Opening %s store: %v", settings.Storage.Backend, err)
		return
	}
	indexStore = store

	providerSvc := services.NewProviderService(store, cfg, providers.All()...)
	providerService = providerSvc

	embedder, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.Warn("Embedding provider: %v", err)
	}
	appEmbedder = embedder

	llm, err := ai.CreateLLMService(&settings.LLM)
	if err != nil {
		logger.Warn("LLM provider: %v", err)
	}
	appLLM = llm

	if embedder == nil {
		logger.Warn("No embedding provider configured; sync and search are disabled. " +
			"Run 'trawl settings set embedding.provider ollama' to enable them")
		return
	}

	search := services.NewSearchService(embedder, store)
	searchService = search
	if llm != nil {
		askService = services.NewAskService(search, llm)
	}

	chk, err := chunker.New(
		chunker.WithSize(settings.Chunking.Size),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)
	if err != nil {
		logger.Warn("Chunker: %v", err)
		return
	}

	extraction := services.NewExtractionService()
	extractors.RegisterDefaults(extraction)

	syncSvc := services.NewSyncService(providerSvc, store, extraction, chk, embedder, settings.Sync.Workers)
	syncService = syncSvc
	syncScheduler = services.NewSchedulerService(store, syncSvc, settings.Sync.Interval)
}

func openStore(ctx context.Context, settings domain.Settings) (driven.Store, error) {
	switch settings.Storage.Backend {
	case domain.StorageSQLite:
		return sqlite.NewStore(settings.Storage.SQLitePath)
	case domain.StoragePostgres:
		return postgres.NewStore(ctx, settings.Storage.PostgresDSN, settings.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidConfiguration, settings.Storage.Backend)
	}
}

func closeServices() {
	if appEmbedder != nil {
		if err := appEmbedder.Close(); err != nil {
			logger.Debug("Closing embedding service: %v", err)
		}
	}
	if appLLM != nil {
		if err := appLLM.Close(); err != nil {
			logger.Debug("Closing LLM service: %v", err)
		}
	}
	if indexStore != nil {
		if err := indexStore.Close(); err != nil {
			logger.Debug("Closing store: %v", err)
		}
	}
}
