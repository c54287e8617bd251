// Package local implements the DocumentProvider interface for a directory
// on the local filesystem. Document ids are derived from the relative path,
// so renames re-index and content edits only change the version metadata.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// Option keys understood by the local provider.
const (
	optRoot       = "root"
	optRecursive  = "recursive"
	optExtensions = "extensions"
	optExclude    = "exclude"
)

// idPrefix marks locally derived document ids.
const idPrefix = "loc-"

// Factory builds local directory providers.
type Factory struct{}

// Ensure Factory implements the interface.
var _ driven.ProviderFactory = (*Factory)(nil)

// NewFactory creates a local provider factory.
func NewFactory() *Factory { return &Factory{} }

// Type identifies which provider type this factory builds.
func (f *Factory) Type() domain.ProviderType { return domain.ProviderLocal }

// RequiredOptions lists option keys that must be present before a provider
// can be built.
func (f *Factory) RequiredOptions() []string { return []string{optRoot} }

// SecretOptions lists option keys that hold credentials. Local directories
// need none.
func (f *Factory) SecretOptions() []string { return nil }

// Build constructs a provider rooted at the configured directory.
func (f *Factory) Build(_ context.Context, inst domain.ProviderInstance, _ driven.SecretSource) (driven.DocumentProvider, error) {
	root := inst.Option(optRoot, "")
	if root == "" {
		return nil, fmt.Errorf("%w: local provider %q has no root path", domain.ErrInvalidConfiguration, inst.Name)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving root %q: %v", domain.ErrInvalidConfiguration, root, err)
	}

	recursive := inst.Option(optRecursive, "true") != "false"

	return &Provider{
		name:       inst.Name,
		root:       abs,
		recursive:  recursive,
		extensions: parseExtensions(inst.Options[optExtensions]),
		excludes:   splitList(inst.Options[optExclude]),
		paths:      make(map[string]string),
	}, nil
}

// Provider serves documents from a directory tree.
type Provider struct {
	name      string
	root      string
	recursive bool

	// extensions is a lowercase allow-list without dots; empty means
	// every extension is listed.
	extensions map[string]struct{}

	// excludes holds glob patterns matched against the slash-separated
	// relative path and the base name.
	excludes []string

	// paths maps document ids back to relative paths. Rebuilt by every
	// listing and on demand when a download misses.
	mu    sync.RWMutex
	paths map[string]string
}

// Ensure Provider implements the interface.
var _ driven.DocumentProvider = (*Provider)(nil)

// Type identifies the provider implementation.
func (p *Provider) Type() domain.ProviderType { return domain.ProviderLocal }

// Name returns the configured instance name.
func (p *Provider) Name() string { return p.name }

// ListDocuments walks the root and returns every matching file.
func (p *Provider) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	docs, index, err := p.walk(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.paths = index
	p.mu.Unlock()

	return docs, nil
}

// DownloadDocument opens the file behind a document id. Ids not seen by the
// last listing trigger a re-walk before giving up.
func (p *Provider) DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error) {
	rel, err := p.resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(p.root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, rel)
		}
		return nil, fmt.Errorf("opening %s: %w", rel, err)
	}
	return f, nil
}

// Metadata stats the file behind a document id and returns its current
// listing entry.
func (p *Provider) Metadata(ctx context.Context, id string) (domain.Document, error) {
	rel, err := p.resolve(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}

	info, err := os.Stat(filepath.Join(p.root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, rel)
		}
		return domain.Document{}, fmt.Errorf("stat %s: %w", rel, err)
	}

	return p.document(rel, info), nil
}

// Probe checks the root exists and is a directory, and counts the documents
// a listing would return.
func (p *Provider) Probe(ctx context.Context) domain.ProbeResult {
	info, err := os.Stat(p.root)
	if err != nil {
		return domain.ProbeResult{Detail: err.Error(), Documents: -1}
	}
	if !info.IsDir() {
		return domain.ProbeResult{Detail: fmt.Sprintf("%s is not a directory", p.root), Documents: -1}
	}

	docs, _, err := p.walk(ctx)
	if err != nil {
		return domain.ProbeResult{Detail: err.Error(), Documents: -1}
	}

	return domain.ProbeResult{OK: true, Detail: p.root, Documents: len(docs)}
}

// Close releases nothing; local providers hold no connections.
func (p *Provider) Close() error { return nil }

// walk produces the listing and a fresh id index in one pass.
func (p *Provider) walk(ctx context.Context) ([]domain.Document, map[string]string, error) {
	var docs []domain.Document
	index := make(map[string]string)

	err := filepath.WalkDir(p.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if entry.IsDir() {
			if path == p.root {
				return nil
			}
			if !p.recursive || hidden(entry.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden(entry.Name()) || !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if !p.matches(rel, entry.Name()) {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			// The file vanished mid-walk; the next run picks it up.
			return nil //nolint:nilerr // Skip entries that disappear.
		}

		doc := p.document(rel, info)
		docs = append(docs, doc)
		index[doc.ID] = rel
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: walking %s: %v", domain.ErrProviderUnavailable, p.root, err)
	}

	return docs, index, nil
}

// document builds a listing entry from a relative path and its FileInfo.
func (p *Provider) document(rel string, info fs.FileInfo) domain.Document {
	return domain.Document{
		ID:           DocumentID(rel),
		Filename:     filepath.Base(rel),
		RelativePath: rel,
		ProviderType: domain.ProviderLocal,
		ProviderName: p.name,
		ETag:         fmt.Sprintf("%x-%x", info.Size(), info.ModTime().UnixNano()),
		LastModified: info.ModTime(),
		SizeBytes:    info.Size(),
	}
}

// matches applies the extension allow-list and the exclude patterns.
func (p *Provider) matches(rel, base string) bool {
	if len(p.extensions) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
		if _, ok := p.extensions[ext]; !ok {
			return false
		}
	}

	for _, pattern := range p.excludes {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return false
		}
	}
	return true
}

// resolve maps a document id to its relative path, re-walking once when the
// id is not in the index.
func (p *Provider) resolve(ctx context.Context, id string) (string, error) {
	p.mu.RLock()
	rel, ok := p.paths[id]
	p.mu.RUnlock()
	if ok {
		return rel, nil
	}

	if _, err := p.ListDocuments(ctx); err != nil {
		return "", err
	}

	p.mu.RLock()
	rel, ok = p.paths[id]
	p.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	return rel, nil
}

// DocumentID derives the stable id for a relative path. It survives content
// edits; only a rename or move produces a new id.
func DocumentID(rel string) string {
	sum := sha256.Sum256([]byte(rel))
	return idPrefix + hex.EncodeToString(sum[:])[:32]
}

// hidden reports whether a file or directory name is dot-prefixed.
func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// parseExtensions normalises a comma-separated allow-list.
func parseExtensions(raw string) map[string]struct{} {
	list := splitList(raw)
	if len(list) == 0 {
		return nil
	}

	exts := make(map[string]struct{}, len(list))
	for _, e := range list {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return exts
}

// splitList splits a comma-separated option value, dropping empties.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
