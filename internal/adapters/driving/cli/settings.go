package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trawlhq/trawl/internal/adapters/driven/ai"
	"github.com/trawlhq/trawl/internal/core/domain"
)

// Credential checks run after an embedding or LLM key changes. Package
// variables so tests can stub the network round-trip.
var (
	validateEmbeddingConfig func(*domain.EmbeddingSettings) error = ai.ValidateEmbeddingConfig
	validateLLMConfig       func(*domain.LLMSettings) error       = ai.ValidateLLMConfig
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change settings: chunking geometry, embedding and LLM
providers, storage backend, sync workers and serve-mode options.

Keys use dot notation, e.g. 'embedding.model' or 'sync.workers'.`,
	RunE: runSettingsList,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all settings with their effective values",
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one setting's effective value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Long: `Validates and persists one setting. Changing an embedding or LLM key
also pings the provider so a typo in a URL or API key surfaces now
rather than on the next sync.`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsList(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Settings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	for _, key := range settingsService.Keys() {
		value, err := settingsService.Get(key)
		if err != nil {
			return err
		}
		if isSecretKey(key) && value != "" {
			value = maskAPIKey(value)
		}
		if value == "" {
			value = "(not set)"
		}
		cmd.Printf("  %-24s %s\n", key, value)
	}

	cmd.Println()
	embeddingState := "not configured"
	if settings.Embedding.IsConfigured() {
		embeddingState = "configured"
	}
	llmState := "not configured (ask disabled)"
	if settings.LLM.IsConfigured() {
		llmState = "configured"
	}
	cmd.Printf("Embedding: %s. LLM: %s.\n", embeddingState, llmState)
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	value, err := settingsService.Get(args[0])
	if err != nil {
		return err
	}
	cmd.Println(value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := args[0], args[1]
	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	cmd.Printf("Set %s.\n", key)

	if err := verifyAIChange(cmd, key); err != nil {
		return err
	}

	// Service wiring happens at startup, so a changed provider or
	// backend takes effect on the next invocation.
	return nil
}

// verifyAIChange pings the embedding or LLM provider after one of its
// settings changed. The setting is already persisted; a failed ping
// reports the problem without rolling back.
func verifyAIChange(cmd *cobra.Command, key string) error {
	isEmbedding := strings.HasPrefix(key, "embedding.")
	isLLM := strings.HasPrefix(key, "llm.")
	if !isEmbedding && !isLLM {
		return nil
	}

	settings, err := settingsService.Settings()
	if err != nil {
		return err
	}

	if isEmbedding && settings.Embedding.IsConfigured() {
		cmd.Print("Validating embedding configuration... ")
		if err := validateEmbeddingConfig(&settings.Embedding); err != nil {
			cmd.Println("FAILED")
			return fmt.Errorf("embedding provider check failed: %w", err)
		}
		cmd.Println("OK")
	}
	if isLLM && settings.LLM.IsConfigured() {
		cmd.Print("Validating LLM configuration... ")
		if err := validateLLMConfig(&settings.LLM); err != nil {
			cmd.Println("FAILED")
			return fmt.Errorf("LLM provider check failed: %w", err)
		}
		cmd.Println("OK")
	}
	return nil
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key")
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
