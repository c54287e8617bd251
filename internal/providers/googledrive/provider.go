// Package googledrive implements the DocumentProvider interface for a
// Google Drive folder using a service account. Google Workspace documents
// are exported to text formats; everything else is downloaded as-is.
package googledrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// Option keys understood by the googledrive provider.
const (
	optCredentialsJSON = "credentials_json"
	optFolderID        = "folder_id"
)

// Google Workspace MIME types.
const (
	mimeFolder = "application/vnd.google-apps.folder"
	mimeDoc    = "application/vnd.google-apps.document"
	mimeSheet  = "application/vnd.google-apps.spreadsheet"
	mimeSlides = "application/vnd.google-apps.presentation"

	// mimeWorkspacePrefix covers the remaining Workspace types (forms,
	// maps, sites) that have no useful text export.
	mimeWorkspacePrefix = "application/vnd.google-apps."
)

// maxExportSize caps exported Workspace content at 5MB.
const maxExportSize = 5 * 1024 * 1024

// listPageSize bounds Files.List pages.
const listPageSize = 100

// fileFields trims list and get responses to what the listing needs.
const fileFields = "id, name, mimeType, size, modifiedTime, md5Checksum"

// exportFormat describes how one Workspace type converts to text.
type exportFormat struct {
	mime   string
	suffix string
}

// exportFormats maps exportable Workspace types to their text renditions.
// The filename suffix routes the result to the right extractor.
var exportFormats = map[string]exportFormat{
	mimeDoc:    {mime: "text/plain", suffix: ".txt"},
	mimeSheet:  {mime: "text/csv", suffix: ".csv"},
	mimeSlides: {mime: "text/plain", suffix: ".txt"},
}

// Factory builds Google Drive providers.
type Factory struct{}

// Ensure Factory implements the interface.
var _ driven.ProviderFactory = (*Factory)(nil)

// NewFactory creates a googledrive provider factory.
func NewFactory() *Factory { return &Factory{} }

// Type identifies which provider type this factory builds.
func (f *Factory) Type() domain.ProviderType { return domain.ProviderGoogleDrive }

// RequiredOptions lists option keys that must be present before a provider
// can be built.
func (f *Factory) RequiredOptions() []string {
	return []string{optFolderID, optCredentialsJSON}
}

// SecretOptions lists option keys that hold credentials.
func (f *Factory) SecretOptions() []string { return []string{optCredentialsJSON} }

// Build constructs a provider for one folder. The service account JSON
// comes from the secret source.
func (f *Factory) Build(ctx context.Context, inst domain.ProviderInstance, secrets driven.SecretSource) (driven.DocumentProvider, error) {
	folderID := inst.Option(optFolderID, "")
	if folderID == "" {
		return nil, fmt.Errorf("%w: googledrive provider %q has no folder_id", domain.ErrInvalidConfiguration, inst.Name)
	}

	var credentials string
	if secrets != nil {
		credentials = secrets.Secret(inst.Type, inst.Name, optCredentialsJSON)
	}
	if credentials == "" {
		return nil, fmt.Errorf("%w: googledrive provider %q has no credentials_json", domain.ErrInvalidConfiguration, inst.Name)
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsJSON([]byte(credentials)),
		option.WithScopes(drive.DriveReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("%w: creating drive client: %v", domain.ErrInvalidConfiguration, err)
	}

	return &Provider{
		name:     inst.Name,
		svc:      svc,
		folderID: folderID,
	}, nil
}

// Provider serves documents from one Drive folder tree.
type Provider struct {
	name     string
	svc      *drive.Service
	folderID string
}

// Ensure Provider implements the interface.
var _ driven.DocumentProvider = (*Provider)(nil)

// Type identifies the provider implementation.
func (p *Provider) Type() domain.ProviderType { return domain.ProviderGoogleDrive }

// Name returns the configured instance name.
func (p *Provider) Name() string { return p.name }

// ListDocuments walks the folder tree breadth-first with paged queries.
// Workspace types without a text export are not listed.
func (p *Provider) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	type pending struct {
		id     string
		prefix string
	}

	queue := []pending{{id: p.folderID, prefix: ""}}
	var docs []domain.Document

	for len(queue) > 0 {
		folder := queue[0]
		queue = queue[1:]

		pageToken := ""
		for {
			call := p.svc.Files.List().
				Q(fmt.Sprintf("'%s' in parents and trashed = false", folder.id)).
				Fields(googleapi.Field("nextPageToken, files(" + fileFields + ")")).
				PageSize(listPageSize).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			page, err := call.Do()
			if err != nil {
				return nil, fmt.Errorf("%w: listing folder %s: %v", domain.ErrProviderUnavailable, folder.id, err)
			}

			for _, file := range page.Files {
				if file.MimeType == mimeFolder {
					queue = append(queue, pending{id: file.Id, prefix: joinPath(folder.prefix, file.Name)})
					continue
				}
				doc, ok := p.document(file, folder.prefix)
				if !ok {
					continue
				}
				docs = append(docs, doc)
			}

			pageToken = page.NextPageToken
			if pageToken == "" {
				break
			}
		}
	}

	return docs, nil
}

// DownloadDocument streams one file's content, exporting Workspace types to
// their text rendition.
func (p *Provider) DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error) {
	file, err := p.svc.Files.Get(id).Fields("id, name, mimeType").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, p.wrapFileError("fetching", id, err)
	}

	if format, ok := exportFormats[file.MimeType]; ok {
		resp, err := p.svc.Files.Export(id, format.mime).Context(ctx).Download()
		if err != nil {
			return nil, p.wrapFileError("exporting", id, err)
		}
		return cappedBody{
			Reader: io.LimitReader(resp.Body, maxExportSize),
			closer: resp.Body,
		}, nil
	}

	resp, err := p.svc.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, p.wrapFileError("downloading", id, err)
	}
	return resp.Body, nil
}

// Metadata fetches one file's listing entry. The relative path of a single
// get is just the filename; full paths only come from listings.
func (p *Provider) Metadata(ctx context.Context, id string) (domain.Document, error) {
	file, err := p.svc.Files.Get(id).Fields(fileFields).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return domain.Document{}, p.wrapFileError("fetching", id, err)
	}

	doc, ok := p.document(file, "")
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s has no text rendition", domain.ErrDocumentNotFound, id)
	}
	return doc, nil
}

// Probe fetches the configured folder, which exercises credentials and the
// folder id in one call.
func (p *Provider) Probe(ctx context.Context) domain.ProbeResult {
	file, err := p.svc.Files.Get(p.folderID).Fields("id, name").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return domain.ProbeResult{Detail: err.Error(), Documents: -1}
	}
	return domain.ProbeResult{OK: true, Detail: file.Name, Documents: -1}
}

// Close releases nothing; the client holds no connections worth tearing
// down.
func (p *Provider) Close() error { return nil }

// document maps a Drive file to a listing entry. Workspace types without an
// export format return ok=false.
func (p *Provider) document(file *drive.File, prefix string) (domain.Document, bool) {
	doc := domain.Document{
		ID:           file.Id,
		Filename:     file.Name,
		ProviderType: domain.ProviderGoogleDrive,
		ProviderName: p.name,
		ETag:         file.Md5Checksum,
		SizeBytes:    file.Size,
		MimeType:     file.MimeType,
	}

	if format, ok := exportFormats[file.MimeType]; ok {
		// Exported content has no stable checksum or size up front.
		doc.Filename = file.Name + format.suffix
		doc.MimeType = format.mime
		doc.SizeBytes = -1
	} else if isWorkspaceMime(file.MimeType) {
		return domain.Document{}, false
	}

	if file.ModifiedTime != "" {
		if ts, err := time.Parse(time.RFC3339, file.ModifiedTime); err == nil {
			doc.LastModified = ts
		}
	}
	if doc.ETag == "" {
		// Workspace files carry no md5; the modification stamp is the
		// only version marker Drive gives us.
		doc.ETag = file.ModifiedTime
	}

	doc.RelativePath = joinPath(prefix, doc.Filename)
	return doc, true
}

// wrapFileError maps googleapi errors onto the provider error contract.
func (p *Provider) wrapFileError(verb, id string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, id)
	}
	return fmt.Errorf("%w: %s %s: %v", domain.ErrProviderUnavailable, verb, id, err)
}

// cappedBody limits how much of a response body can be read while keeping
// the underlying closer.
type cappedBody struct {
	io.Reader
	closer io.Closer
}

func (c cappedBody) Close() error { return c.closer.Close() }

// joinPath joins folder prefixes without leading slashes.
func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// isWorkspaceMime reports whether a MIME type is a Google Workspace type.
func isWorkspaceMime(mime string) bool {
	return strings.HasPrefix(mime, mimeWorkspacePrefix)
}
