// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentProvider: Lists and downloads documents from a backend
//   - ProviderFactory: Builds providers from stored configuration
//   - TextExtractor: Converts document bytes to plain text
//   - EmbeddingService: Generates vector embeddings
//   - Store: Chunk, tracking, provider and schedule persistence
//   - ConfigStore: Application configuration and secrets
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer synthesis for ask queries. Without it, search
//     still works; ask is disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, provider, or extractor package
package driven
