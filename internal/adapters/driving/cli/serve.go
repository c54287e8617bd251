package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trawlhq/trawl/internal/adapters/driving/httpapi"
	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/logger"
	"github.com/trawlhq/trawl/internal/watcher"
)

var (
	serveAddr  string
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with scheduled syncs",
	Long: `Starts the HTTP API and keeps interval schedules firing until
interrupted. With --watch, local provider roots are watched for file
changes and re-synced after a quiet period.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from the http.addr setting)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "watch local provider roots and sync on changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if indexStore == nil {
		return errors.New("store not configured")
	}
	if syncService == nil {
		return errors.New("sync service not configured")
	}
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	addr := serveAddr
	if addr == "" {
		settings, err := settingsService.Settings()
		if err != nil {
			return err
		}
		addr = settings.HTTP.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if syncScheduler != nil {
		if err := syncScheduler.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer syncScheduler.Stop()
	}

	if serveWatch {
		w, err := buildWatcher(ctx)
		if err != nil {
			return err
		}
		if w != nil {
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Stop()
		}
	}

	server := httpapi.NewServer(addr, indexStore, searchService, askService, syncService)
	cmd.Printf("Listening on %s. Press Ctrl+C to stop.\n", addr)
	return server.Start(ctx)
}

// buildWatcher collects the roots of enabled local instances. Returns nil
// when there is nothing to watch; serve then runs without a watcher.
func buildWatcher(ctx context.Context) (*watcher.Watcher, error) {
	if providerService == nil {
		return nil, errors.New("provider service not configured")
	}

	instances, err := providerService.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing providers: %w", err)
	}

	var targets []watcher.Target
	for _, inst := range instances {
		if inst.Type != domain.ProviderLocal || !inst.Enabled {
			continue
		}
		root := inst.Option("root", "")
		if root == "" {
			continue
		}
		targets = append(targets, watcher.Target{
			ProviderType: inst.Type,
			ProviderName: inst.Name,
			Root:         root,
		})
	}

	if len(targets) == 0 {
		logger.Warn("Watch enabled but there are no enabled local providers to watch")
		return nil, nil
	}
	return watcher.New(syncService, targets), nil
}
