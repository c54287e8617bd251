package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trawlhq/trawl/internal/core/domain"
)

var (
	syncProviderRef string
	syncJSON        bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronise documents from providers",
	Long: `Runs a synchronisation pass: lists each enabled provider, indexes new
and changed documents, and removes documents the provider no longer has.
With --provider only that instance is synchronised, enabled or not.

Partial failures are reported but do not fail the command; only a run
that cannot proceed at all (invalid configuration, store unreachable,
another run in progress) exits non-zero.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncProviderRef, "provider", "p", "", "sync a single instance, as type/name")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}

	ctx := context.Background()

	var report *domain.SyncReport
	var err error
	if syncProviderRef != "" {
		providerType, name, refErr := parseProviderRef(syncProviderRef)
		if refErr != nil {
			return refErr
		}
		cmd.Printf("Synchronising %s/%s...\n", providerType, name)
		report, err = syncWithProgress(ctx, cmd, func(ctx context.Context) (*domain.SyncReport, error) {
			return syncService.RunProvider(ctx, providerType, name)
		})
	} else {
		cmd.Println("Synchronising all providers...")
		report, err = syncWithProgress(ctx, cmd, syncService.Run)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if syncJSON {
		return outputReportJSON(cmd, report)
	}
	outputReportTable(cmd, report)
	return nil
}

// syncWithProgress runs the pass while echoing which provider instance is
// being processed.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	run func(context.Context) (*domain.SyncReport, error),
) (*domain.SyncReport, error) {
	type result struct {
		report *domain.SyncReport
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		report, err := run(ctx)
		resCh <- result{report, err}
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCurrent := ""
	for {
		select {
		case res := <-resCh:
			return res.report, res.err
		case <-ticker.C:
			status := syncService.Status()
			if status.Current != "" && status.Current != lastCurrent {
				cmd.Printf("  %s\n", status.Current)
				lastCurrent = status.Current
			}
		}
	}
}

func outputReportJSON(cmd *cobra.Command, report *domain.SyncReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputReportTable(cmd *cobra.Command, report *domain.SyncReport) {
	cmd.Println()
	cmd.Printf("Sync run %s finished in %s\n", report.RunID, report.Duration().Round(time.Millisecond))
	cmd.Println()
	cmd.Printf("  %-28s %7s %8s %10s %8s %8s %7s\n",
		"PROVIDER", "LISTED", "INDEXED", "UNCHANGED", "SKIPPED", "REMOVED", "FAILED")
	for _, p := range report.Providers {
		cmd.Printf("  %-28s %7d %8d %10d %8d %8d %7d\n",
			p.ProviderType.String()+"/"+p.ProviderName,
			p.Listed, p.Indexed, p.Unchanged, p.Skipped, p.Removed, p.Failed)
		if p.Err != "" {
			cmd.Printf("    provider error: %s\n", p.Err)
		}
	}

	if report.HasFailures() {
		cmd.Println()
		cmd.Println("Failures:")
		for _, p := range report.Providers {
			for _, f := range p.Failures {
				cmd.Printf("  %s/%s %s (%s): %s\n",
					p.ProviderType, p.ProviderName, f.Filename, f.Stage, f.Reason)
			}
		}
	}
	cmd.Println()
}

// parseProviderRef splits "type/name" and validates the type.
func parseProviderRef(ref string) (domain.ProviderType, string, error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid provider reference %q (want type/name, e.g. local/notes)", ref)
	}
	providerType := domain.ProviderType(parts[0])
	if !providerType.IsValid() {
		return "", "", fmt.Errorf("unknown provider type %q (one of: %s)", parts[0], providerTypeList())
	}
	return providerType, parts[1], nil
}

func providerTypeList() string {
	types := domain.AllProviderTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
