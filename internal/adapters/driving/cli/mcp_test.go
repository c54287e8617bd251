package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPCmd_Use(t *testing.T) {
	assert.Equal(t, "mcp", mcpCmd.Use)
}

func TestMCPCmd_Short(t *testing.T) {
	assert.Equal(t, "Run the Model Context Protocol server", mcpCmd.Short)
}

func TestMCPCmd_Long(t *testing.T) {
	assert.Contains(t, mcpCmd.Long, "stdio")
	assert.Contains(t, mcpCmd.Long, "--addr")
}

func TestMCPCmd_HasAddrFlag(t *testing.T) {
	flag := mcpCmd.Flags().Lookup("addr")
	require.NotNil(t, flag, "addr flag should exist")
	assert.Equal(t, "", flag.DefValue)
}

func TestMCPCmd_RejectsPositionalArgs(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"mcp", "extra"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}

func TestMCPCmd_SearchServiceNotConfigured(t *testing.T) {
	oldSearch := searchService
	searchService = nil
	defer func() {
		searchService = oldSearch
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"mcp"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}
