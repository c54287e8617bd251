// Package onedrive implements the DocumentProvider interface for OneDrive
// and SharePoint document libraries via the Microsoft Graph API, using
// client-credential (application) auth.
package onedrive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
	"github.com/trawlhq/trawl/internal/providers/ratelimit"
)

// Option keys understood by the onedrive provider.
const (
	optTenantID     = "tenant_id"
	optClientID     = "client_id"
	optClientSecret = "client_secret"
	optDriveID      = "drive_id"
	optFolder       = "folder"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	tokenURLFmt  = "https://login.microsoftonline.com/%s/oauth2/v2.0/token" //nolint:gosec // G101: URL template, not a credential.
	graphScope   = "https://graph.microsoft.com/.default"

	// listPageSize bounds children pages; Graph caps $top at 200 for
	// driveItem collections.
	listPageSize = 200

	// maxAttempts bounds retries of a single request after 429s.
	maxAttempts = 3
)

// itemFields trims children responses to what the listing needs.
const itemFields = "id,name,eTag,lastModifiedDateTime,size,file,folder"

// Factory builds OneDrive providers.
type Factory struct{}

// Ensure Factory implements the interface.
var _ driven.ProviderFactory = (*Factory)(nil)

// NewFactory creates a onedrive provider factory.
func NewFactory() *Factory { return &Factory{} }

// Type identifies which provider type this factory builds.
func (f *Factory) Type() domain.ProviderType { return domain.ProviderOneDrive }

// RequiredOptions lists option keys that must be present before a provider
// can be built.
func (f *Factory) RequiredOptions() []string {
	return []string{optTenantID, optClientID, optClientSecret, optDriveID}
}

// SecretOptions lists option keys that hold credentials.
func (f *Factory) SecretOptions() []string { return []string{optClientSecret} }

// Build constructs a provider for one drive. The client secret comes from
// the secret source, never from the stored instance.
func (f *Factory) Build(ctx context.Context, inst domain.ProviderInstance, secrets driven.SecretSource) (driven.DocumentProvider, error) {
	tenantID := inst.Option(optTenantID, "")
	clientID := inst.Option(optClientID, "")
	driveID := inst.Option(optDriveID, "")
	if tenantID == "" || clientID == "" || driveID == "" {
		return nil, fmt.Errorf("%w: onedrive provider %q needs tenant_id, client_id and drive_id", domain.ErrInvalidConfiguration, inst.Name)
	}

	var clientSecret string
	if secrets != nil {
		clientSecret = secrets.Secret(inst.Type, inst.Name, optClientSecret)
	}
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: onedrive provider %q has no client_secret", domain.ErrInvalidConfiguration, inst.Name)
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf(tokenURLFmt, tenantID),
		Scopes:       []string{graphScope},
	}

	return &Provider{
		name:    inst.Name,
		client:  conf.Client(ctx),
		baseURL: graphBaseURL,
		driveID: driveID,
		folder:  strings.Trim(inst.Option(optFolder, ""), "/"),
		limiter: ratelimit.New(8, 10),
	}, nil
}

// Provider serves documents from one drive, optionally scoped to a folder.
type Provider struct {
	name    string
	client  *http.Client
	baseURL string
	driveID string
	folder  string
	limiter *ratelimit.Limiter
}

// Ensure Provider implements the interface.
var _ driven.DocumentProvider = (*Provider)(nil)

// driveItem is the slice of the Graph driveItem resource the provider reads.
type driveItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ETag         string    `json:"eTag"`
	LastModified time.Time `json:"lastModifiedDateTime"`
	Size         int64     `json:"size"`
	File         *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
}

// childrenPage is one page of a children collection.
type childrenPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

// Type identifies the provider implementation.
func (p *Provider) Type() domain.ProviderType { return domain.ProviderOneDrive }

// Name returns the configured instance name.
func (p *Provider) Name() string { return p.name }

// ListDocuments walks the folder tree breadth-first, following
// @odata.nextLink pagination within each folder.
func (p *Provider) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	type pending struct {
		url    string
		prefix string
	}

	queue := []pending{{url: p.rootChildrenURL(), prefix: ""}}
	var docs []domain.Document

	for len(queue) > 0 {
		folder := queue[0]
		queue = queue[1:]

		next := folder.url
		for next != "" {
			var page childrenPage
			if err := p.getJSON(ctx, next, &page); err != nil {
				return nil, fmt.Errorf("%w: listing drive %s: %v", domain.ErrProviderUnavailable, p.driveID, err)
			}

			for _, item := range page.Value {
				relative := item.Name
				if folder.prefix != "" {
					relative = folder.prefix + "/" + item.Name
				}
				if item.Folder != nil {
					queue = append(queue, pending{
						url:    p.itemChildrenURL(item.ID),
						prefix: relative,
					})
					continue
				}
				docs = append(docs, p.document(item, relative))
			}
			next = page.NextLink
		}
	}

	return docs, nil
}

// DownloadDocument streams one item's content. Graph answers with a
// redirect to a pre-authenticated URL, which the HTTP client follows.
func (p *Provider) DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/drives/%s/items/%s/content", p.baseURL, p.driveID, url.PathEscape(id))

	resp, err := p.do(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching item %s: %v", domain.ErrProviderUnavailable, id, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		drainAndClose(resp.Body)
		return nil, fmt.Errorf("%w: item %s", domain.ErrDocumentNotFound, id)
	default:
		detail := readError(resp.Body)
		return nil, fmt.Errorf("%w: fetching item %s: %s: %s", domain.ErrProviderUnavailable, id, resp.Status, detail)
	}
}

// Metadata fetches one item's listing entry.
func (p *Provider) Metadata(ctx context.Context, id string) (domain.Document, error) {
	u := fmt.Sprintf("%s/drives/%s/items/%s?%s", p.baseURL, p.driveID, url.PathEscape(id),
		url.Values{"$select": {itemFields}}.Encode())

	var item driveItem
	if err := p.getJSON(ctx, u, &item); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			return domain.Document{}, fmt.Errorf("%w: item %s", domain.ErrDocumentNotFound, id)
		}
		return domain.Document{}, fmt.Errorf("%w: fetching item %s: %v", domain.ErrProviderUnavailable, id, err)
	}

	return p.document(item, item.Name), nil
}

// Probe fetches the drive resource, which exercises the token flow and the
// drive id in one call.
func (p *Provider) Probe(ctx context.Context) domain.ProbeResult {
	u := fmt.Sprintf("%s/drives/%s?%s", p.baseURL, p.driveID,
		url.Values{"$select": {"id,name"}}.Encode())

	var drive struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := p.getJSON(ctx, u, &drive); err != nil {
		return domain.ProbeResult{Detail: err.Error(), Documents: -1}
	}

	detail := drive.Name
	if detail == "" {
		detail = drive.ID
	}
	return domain.ProbeResult{OK: true, Detail: detail, Documents: -1}
}

// Close drops idle connections held by the authenticated client.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// document maps a driveItem to a listing entry.
func (p *Provider) document(item driveItem, relative string) domain.Document {
	doc := domain.Document{
		ID:           item.ID,
		Filename:     item.Name,
		RelativePath: relative,
		ProviderType: domain.ProviderOneDrive,
		ProviderName: p.name,
		ETag:         item.ETag,
		LastModified: item.LastModified,
		SizeBytes:    item.Size,
	}
	if item.File != nil {
		doc.MimeType = item.File.MimeType
	}
	return doc
}

// rootChildrenURL addresses the configured folder's children.
func (p *Provider) rootChildrenURL() string {
	query := url.Values{"$select": {itemFields}, "$top": {strconv.Itoa(listPageSize)}}.Encode()
	if p.folder == "" {
		return fmt.Sprintf("%s/drives/%s/root/children?%s", p.baseURL, p.driveID, query)
	}
	return fmt.Sprintf("%s/drives/%s/root:/%s:/children?%s", p.baseURL, p.driveID, escapePath(p.folder), query)
}

// itemChildrenURL addresses a subfolder's children.
func (p *Provider) itemChildrenURL(id string) string {
	query := url.Values{"$select": {itemFields}, "$top": {strconv.Itoa(listPageSize)}}.Encode()
	return fmt.Sprintf("%s/drives/%s/items/%s/children?%s", p.baseURL, p.driveID, url.PathEscape(id), query)
}

// statusError is a non-200 Graph response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("graph returned %d: %s", e.status, e.body)
}

// getJSON performs a GET and decodes a 200 response into out.
func (p *Provider) getJSON(ctx context.Context, u string, out any) error {
	resp, err := p.do(ctx, u)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &statusError{status: resp.StatusCode, body: readError(resp.Body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// do performs one rate-limited GET, retrying after 429 responses.
func (p *Provider) do(ctx context.Context, u string) (*http.Response, error) {
	var lastStatus string
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		lastStatus = resp.Status
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		p.limiter.RecordRetryAfter(retryAfter)
		drainAndClose(resp.Body)
	}

	return nil, fmt.Errorf("%w: graph kept returning %s", domain.ErrRateLimited, lastStatus)
}

// escapePath percent-encodes each segment of a drive path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// readError returns a short snippet of an error response body.
func readError(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 512))
	return strings.TrimSpace(string(data))
}

// drainAndClose lets the transport reuse the connection.
func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
