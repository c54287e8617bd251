// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage under ~/.trawl,
//     flattened to dot-notation keys in memory and written back as
//     nested tables with 0600 permissions (the file may hold secrets)
package file
