package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trawlhq/trawl/internal/core/domain"
)

var providerAddOpts []string

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage document providers",
	Long: `Add, inspect and remove the provider instances trawl indexes from.
Several instances of the same type may coexist; each is addressed as
type/name, e.g. 's3/reports' or 'local/notes'.`,
	RunE: runProviderList,
}

var providerAddCmd = &cobra.Command{
	Use:   "add [type] [name]",
	Short: "Add a provider instance",
	Long: `Adds a provider instance and stores its configuration. Options are
provider-specific, passed as repeated --opt key=value flags; credential
options are prompted for without echo when not given.

  local        root (required), recursive, extensions, exclude
  s3           bucket (required), region, endpoint, prefix,
               access_key_id, secret_access_key
  onedrive     tenant_id, client_id, client_secret, drive_id (required),
               folder
  googledrive  folder_id, credentials_json (required)

Example:
  trawl provider add local notes --opt root=/home/me/notes
  trawl provider add s3 reports --opt bucket=acme-reports --opt region=eu-west-1`,
	Args: cobra.ExactArgs(2),
	RunE: runProviderAdd,
}

var providerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured provider instances",
	RunE:  runProviderList,
}

var providerRemoveCmd = &cobra.Command{
	Use:   "remove [type] [name]",
	Short: "Remove a provider instance and its indexed documents",
	Args:  cobra.ExactArgs(2),
	RunE:  runProviderRemove,
}

var providerEnableCmd = &cobra.Command{
	Use:   "enable [type] [name]",
	Short: "Include a provider instance in sync runs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setProviderEnabled(cmd, args, true)
	},
}

var providerDisableCmd = &cobra.Command{
	Use:   "disable [type] [name]",
	Short: "Exclude a provider instance from sync runs",
	Long: `Excludes the instance from sync runs. Its indexed documents stay
searchable; re-enable it to resume syncing.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setProviderEnabled(cmd, args, false)
	},
}

var providerProbeCmd = &cobra.Command{
	Use:   "probe [type] [name]",
	Short: "Check provider connectivity",
	Args:  cobra.ExactArgs(2),
	RunE:  runProviderProbe,
}

func init() {
	providerAddCmd.Flags().StringArrayVar(&providerAddOpts, "opt", nil, "provider option as key=value (repeatable)")
	providerCmd.AddCommand(providerAddCmd)
	providerCmd.AddCommand(providerListCmd)
	providerCmd.AddCommand(providerRemoveCmd)
	providerCmd.AddCommand(providerEnableCmd)
	providerCmd.AddCommand(providerDisableCmd)
	providerCmd.AddCommand(providerProbeCmd)
	rootCmd.AddCommand(providerCmd)
}

func runProviderAdd(cmd *cobra.Command, args []string) error {
	if providerService == nil {
		return errors.New("provider service not configured")
	}

	providerType := domain.ProviderType(args[0])
	if !providerType.IsValid() {
		return fmt.Errorf("unknown provider type %q (one of: %s)", args[0], providerTypeList())
	}
	name := args[1]

	options := make(map[string]string, len(providerAddOpts))
	for _, opt := range providerAddOpts {
		key, value, ok := strings.Cut(opt, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid option %q (want key=value)", opt)
		}
		options[key] = value
	}

	// Credential options never live with the instance; split them off
	// and prompt for the ones not given on the command line.
	secretKeys, err := providerService.SecretOptions(providerType)
	if err != nil {
		return err
	}
	secrets := make(map[string]string, len(secretKeys))
	for _, key := range secretKeys {
		if value, ok := options[key]; ok {
			secrets[key] = value
			delete(options, key)
			continue
		}
		cmd.Printf("Enter %s (empty to skip): ", key)
		secrets[key] = readPassword()
		cmd.Println()
	}

	inst := domain.ProviderInstance{
		Type:    providerType,
		Name:    name,
		Enabled: true,
		Options: options,
	}
	if err := providerService.Add(context.Background(), inst, secrets); err != nil {
		return fmt.Errorf("failed to add provider: %w", err)
	}

	cmd.Printf("Added provider %s/%s.\n", providerType, name)
	cmd.Println("Run 'trawl sync' to index its documents.")
	return nil
}

func runProviderList(cmd *cobra.Command, _ []string) error {
	if providerService == nil {
		return errors.New("provider service not configured")
	}

	instances, err := providerService.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list providers: %w", err)
	}

	if len(instances) == 0 {
		cmd.Println("No providers configured.")
		cmd.Println("Run 'trawl provider add' to add one.")
		return nil
	}

	cmd.Println("Configured providers:")
	cmd.Println()
	for _, inst := range instances {
		state := "enabled"
		if !inst.Enabled {
			state = "disabled"
		}
		cmd.Printf("  %-28s %-8s %s\n", inst.Type.String()+"/"+inst.Name, state, inst.Type.Description())
	}
	return nil
}

func runProviderRemove(cmd *cobra.Command, args []string) error {
	if providerService == nil {
		return errors.New("provider service not configured")
	}

	providerType, name, err := parseProviderArgs(args)
	if err != nil {
		return err
	}

	if err := providerService.Remove(context.Background(), providerType, name); err != nil {
		return fmt.Errorf("failed to remove provider: %w", err)
	}

	cmd.Printf("Removed provider %s/%s and its indexed documents.\n", providerType, name)
	return nil
}

func setProviderEnabled(cmd *cobra.Command, args []string, enabled bool) error {
	if providerService == nil {
		return errors.New("provider service not configured")
	}

	providerType, name, err := parseProviderArgs(args)
	if err != nil {
		return err
	}

	if err := providerService.SetEnabled(context.Background(), providerType, name, enabled); err != nil {
		return fmt.Errorf("failed to update provider: %w", err)
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	cmd.Printf("Provider %s/%s %s.\n", providerType, name, state)
	return nil
}

func runProviderProbe(cmd *cobra.Command, args []string) error {
	if providerService == nil {
		return errors.New("provider service not configured")
	}

	providerType, name, err := parseProviderArgs(args)
	if err != nil {
		return err
	}

	cmd.Printf("Probing %s/%s... ", providerType, name)
	result, err := providerService.Probe(context.Background(), providerType, name)
	if err != nil {
		cmd.Println("FAILED")
		return fmt.Errorf("probe failed: %w", err)
	}

	if !result.OK {
		cmd.Println("FAILED")
		cmd.Printf("  %s\n", result.Detail)
		return errors.New("provider is not reachable")
	}

	cmd.Println("OK")
	cmd.Printf("  %s\n", result.Detail)
	if result.Documents >= 0 {
		cmd.Printf("  %d document(s) visible\n", result.Documents)
	}
	return nil
}

func parseProviderArgs(args []string) (domain.ProviderType, string, error) {
	providerType := domain.ProviderType(args[0])
	if !providerType.IsValid() {
		return "", "", fmt.Errorf("unknown provider type %q (one of: %s)", args[0], providerTypeList())
	}
	return providerType, args[1], nil
}

// readPassword reads a credential without echoing it back.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Not a terminal (piped input); fall back to a plain read.
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
