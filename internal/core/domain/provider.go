package domain

import "time"

// ProviderType identifies a document provider implementation.
type ProviderType string

// Supported provider types.
const (
	// ProviderLocal indexes files under a local directory root.
	ProviderLocal ProviderType = "local"

	// ProviderS3 indexes objects in an S3 (or S3-compatible) bucket.
	ProviderS3 ProviderType = "s3"

	// ProviderOneDrive indexes files in a OneDrive/SharePoint drive via
	// the Microsoft Graph API.
	ProviderOneDrive ProviderType = "onedrive"

	// ProviderGoogleDrive indexes files in a Google Drive folder.
	ProviderGoogleDrive ProviderType = "googledrive"
)

// IsValid returns true if the provider type is recognised.
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderLocal, ProviderS3, ProviderOneDrive, ProviderGoogleDrive:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t ProviderType) String() string {
	return string(t)
}

// Description returns a human-readable description of the provider type.
func (t ProviderType) Description() string {
	switch t {
	case ProviderLocal:
		return "Local directory"
	case ProviderS3:
		return "S3 bucket"
	case ProviderOneDrive:
		return "OneDrive / SharePoint drive"
	case ProviderGoogleDrive:
		return "Google Drive folder"
	default:
		return "Unknown"
	}
}

// AllProviderTypes returns the supported types in display order.
func AllProviderTypes() []ProviderType {
	return []ProviderType{ProviderLocal, ProviderS3, ProviderOneDrive, ProviderGoogleDrive}
}

// ProviderInstance is one configured provider. Several instances of the
// same type may coexist (two buckets, two local roots); Name disambiguates
// them and is part of every stored document key.
type ProviderInstance struct {
	// Type identifies the provider implementation.
	Type ProviderType

	// Name is the instance name, unique within its type. Lowercase
	// alphanumerics plus dashes.
	Name string

	// Enabled gates participation in sync runs. Disabled instances keep
	// their indexed documents.
	Enabled bool

	// Options holds provider-specific configuration (root path, bucket,
	// drive id). Secrets are referenced by option key and resolved from
	// the config store at build time.
	Options map[string]string

	// CreatedAt orders instances for deterministic run order.
	CreatedAt time.Time
}

// Option returns the named option or the fallback when unset.
func (p ProviderInstance) Option(key, fallback string) string {
	if v, ok := p.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}

// ProbeResult reports the outcome of a provider connectivity check.
type ProbeResult struct {
	// OK is true when the backend answered an authenticated request.
	OK bool

	// Detail is a human-readable summary (endpoint, root, error text).
	Detail string

	// Documents is the number of documents seen by the probe, when the
	// probe lists; -1 when it only checks reachability.
	Documents int
}
