// Package mcp provides a Model Context Protocol server adapter for trawl.
// It lets AI assistants search the index and ground answers on it.
package mcp

import "errors"

// ErrMissingSearcher is returned when the searcher port is not provided.
var ErrMissingSearcher = errors.New("mcp: searcher is required")
