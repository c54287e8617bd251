package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and sync status",
	Long: `Reports the index size, the documents tracked per provider instance,
and the state of the most recent sync run.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if indexStore == nil {
		return errors.New("store not configured")
	}

	ctx := context.Background()
	if err := indexStore.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	chunks, err := indexStore.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	cmd.Printf("Index: %d chunk(s)\n", chunks)

	if providerService != nil {
		instances, err := providerService.List(ctx)
		if err != nil {
			return fmt.Errorf("listing providers: %w", err)
		}
		for _, inst := range instances {
			tracked, err := indexStore.ListTracking(ctx, inst.Type, inst.Name)
			if err != nil {
				return fmt.Errorf("loading tracking state: %w", err)
			}
			state := ""
			if !inst.Enabled {
				state = " (disabled)"
			}
			cmd.Printf("  %-28s %d document(s)%s\n", inst.Type.String()+"/"+inst.Name, len(tracked), state)
		}
	}

	if syncService != nil {
		status := syncService.Status()
		switch {
		case status.Running:
			cmd.Printf("\nSync running since %s", status.StartedAt.Format(time.RFC3339))
			if status.Current != "" {
				cmd.Printf(", processing %s", status.Current)
			}
			cmd.Println()
		case status.LastReport != nil:
			report := status.LastReport
			cmd.Printf("\nLast sync: %d indexed, %d removed, %d failed in %s\n",
				report.TotalIndexed(), report.TotalRemoved(), report.TotalFailed(),
				report.Duration().Round(time.Millisecond))
		}
	}

	return nil
}
