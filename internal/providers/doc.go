// Package providers implements the DocumentProvider interface for each
// supported backend. Every provider lives in its own subpackage and ships
// a ProviderFactory; All returns the full set for registration at startup.
//
// Providers are read-only views of a backend: they list, describe and
// download documents but never write anything back.
package providers
