// Package domain defines the core business entities for Trawl.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A provider-listed document with change-detection metadata
//   - Chunk: A contiguous slice of extracted text
//   - ChunkRecord: A stored chunk with its embedding
//   - TrackingRecord: The indexed state of a document
//   - ProviderInstance: A configured document provider
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
