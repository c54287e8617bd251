package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlhq/trawl/internal/core/domain"
)

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync", syncCmd.Use)
}

func TestSyncCmd_Short(t *testing.T) {
	assert.Equal(t, "Synchronise documents from providers", syncCmd.Short)
}

func TestSyncCmd_Long(t *testing.T) {
	assert.Contains(t, syncCmd.Long, "indexes new")
	assert.Contains(t, syncCmd.Long, "Partial failures")
}

func TestSyncCmd_HasProviderFlag(t *testing.T) {
	flag := syncCmd.Flags().Lookup("provider")
	require.NotNil(t, flag, "provider flag should exist")
	assert.Equal(t, "p", flag.Shorthand)
}

func TestSyncCmd_HasJSONFlag(t *testing.T) {
	flag := syncCmd.Flags().Lookup("json")
	require.NotNil(t, flag, "json flag should exist")
	assert.Equal(t, "false", flag.DefValue)
}

func TestSyncCmd_RejectsPositionalArgs(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync", "extra"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}

func TestSyncCmd_RunsAllProviders(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Synchronising all providers...")
	assert.Contains(t, buf.String(), "Sync run run-42 finished")
	assert.Contains(t, buf.String(), "local/notes")
	assert.True(t, syncService.(*mockSyncRunner).ranAll)
}

func TestSyncCmd_RunsSingleProvider(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "--provider", "local/notes"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncProviderRef = "" // Reset flag
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Synchronising local/notes...")

	mock := syncService.(*mockSyncRunner)
	assert.False(t, mock.ranAll)
	assert.Equal(t, domain.ProviderLocal, mock.providerType)
	assert.Equal(t, "notes", mock.providerName)
}

func TestSyncCmd_InvalidProviderRef(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync", "-p", "local"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncProviderRef = "" // Reset flag
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid provider reference")
}

func TestSyncCmd_UnknownProviderType(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync", "-p", "ftp/ancient"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncProviderRef = "" // Reset flag
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
	assert.Contains(t, err.Error(), "local")
}

func TestSyncCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "--json"})
	defer func() {
		rootCmd.SetArgs(nil)
		syncJSON = false // Reset flag
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "\"RunID\"")
	assert.Contains(t, buf.String(), "run-42")
}

func TestSyncCmd_ReportsFailures(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	syncService.(*mockSyncRunner).report = &domain.SyncReport{
		RunID:      "run-9",
		StartedAt:  time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2025, 6, 1, 9, 0, 1, 0, time.UTC),
		Providers: []domain.ProviderReport{
			{
				ProviderType: domain.ProviderLocal,
				ProviderName: "notes",
				Listed:       2,
				Indexed:      1,
				Failed:       1,
				Failures: []domain.DocumentFailure{
					{DocumentID: "doc-2", Filename: "broken.pdf", Stage: domain.StageExtract, Reason: "encrypted document"},
				},
			},
			{
				ProviderType: domain.ProviderS3,
				ProviderName: "reports",
				Err:          "bucket unreachable",
			},
		},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err, "partial failures must not fail the command")
	assert.Contains(t, buf.String(), "Failures:")
	assert.Contains(t, buf.String(), "broken.pdf")
	assert.Contains(t, buf.String(), "extract")
	assert.Contains(t, buf.String(), "encrypted document")
	assert.Contains(t, buf.String(), "provider error: bucket unreachable")
}

func TestSyncCmd_ServiceNotConfigured(t *testing.T) {
	oldService := syncService
	syncService = nil
	defer func() {
		syncService = oldService
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync service not configured")
}

func TestSyncCmd_ServiceError(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	syncService.(*mockSyncRunner).err = errors.New("another sync is already running")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")
	assert.Contains(t, err.Error(), "another sync is already running")
}

func TestParseProviderRef(t *testing.T) {
	providerType, name, err := parseProviderRef("s3/reports")

	require.NoError(t, err)
	assert.Equal(t, domain.ProviderS3, providerType)
	assert.Equal(t, "reports", name)
}

func TestParseProviderRef_EmptyName(t *testing.T) {
	_, _, err := parseProviderRef("local/")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid provider reference")
}
