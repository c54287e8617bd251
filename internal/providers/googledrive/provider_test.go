package googledrive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/trawlhq/trawl/internal/core/domain"
)

// driveStub serves a fixed folder tree: a text file, an exportable Google
// Doc, a form with no export, and a subfolder with one nested file.
type driveStub struct {
	srv        *httptest.Server
	listStatus int
}

func newDriveStub(t *testing.T) *driveStub {
	t.Helper()
	stub := &driveStub{}
	stub.srv = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.srv.Close)
	return stub
}

func (d *driveStub) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	switch {
	case r.URL.Path == "/files":
		if d.listStatus != 0 {
			w.WriteHeader(d.listStatus)
			fmt.Fprint(w, `{"error":{"message":"boom"}}`)
			return
		}
		d.handleList(w, q.Get("q"), q.Get("pageToken"))
	case r.URL.Path == "/files/txt1" && q.Get("alt") == "media":
		fmt.Fprint(w, "plain file body")
	case r.URL.Path == "/files/gdoc1/export":
		fmt.Fprint(w, "exported doc text")
	case r.URL.Path == "/files/txt1":
		fmt.Fprint(w, `{"id":"txt1","name":"notes.txt","mimeType":"text/plain","size":"15","modifiedTime":"2026-02-01T09:30:00Z","md5Checksum":"md5a"}`)
	case r.URL.Path == "/files/gdoc1":
		fmt.Fprint(w, `{"id":"gdoc1","name":"Design Doc","mimeType":"application/vnd.google-apps.document","modifiedTime":"2026-02-03T11:00:00Z"}`)
	case r.URL.Path == "/files/root1":
		fmt.Fprint(w, `{"id":"root1","name":"Team Docs"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"File not found"}}`)
	}
}

func (d *driveStub) handleList(w http.ResponseWriter, query, pageToken string) {
	switch {
	case strings.Contains(query, "'root1' in parents"):
		if pageToken == "" {
			fmt.Fprint(w, `{"nextPageToken":"page2","files":[
				{"id":"txt1","name":"notes.txt","mimeType":"text/plain","size":"15","modifiedTime":"2026-02-01T09:30:00Z","md5Checksum":"md5a"},
				{"id":"sub1","name":"guides","mimeType":"application/vnd.google-apps.folder"}
			]}`)
			return
		}
		fmt.Fprint(w, `{"files":[
			{"id":"gdoc1","name":"Design Doc","mimeType":"application/vnd.google-apps.document","modifiedTime":"2026-02-03T11:00:00Z"},
			{"id":"form1","name":"Survey","mimeType":"application/vnd.google-apps.form","modifiedTime":"2026-02-04T08:00:00Z"}
		]}`)
	case strings.Contains(query, "'sub1' in parents"):
		fmt.Fprint(w, `{"files":[
			{"id":"nested1","name":"setup.md","mimeType":"text/markdown","size":"7","modifiedTime":"2026-02-05T10:00:00Z","md5Checksum":"md5b"}
		]}`)
	default:
		fmt.Fprint(w, `{"files":[]}`)
	}
}

func newTestDriveProvider(t *testing.T, stub *driveStub) *Provider {
	t.Helper()
	svc, err := drive.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(stub.srv.URL))
	require.NoError(t, err)

	return &Provider{
		name:     "team",
		svc:      svc,
		folderID: "root1",
	}
}

func TestFactory_Metadata(t *testing.T) {
	factory := NewFactory()
	assert.Equal(t, domain.ProviderGoogleDrive, factory.Type())
	assert.Equal(t, []string{"folder_id", "credentials_json"}, factory.RequiredOptions())
	assert.Equal(t, []string{"credentials_json"}, factory.SecretOptions())
}

func TestFactory_Build_MissingFolder(t *testing.T) {
	_, err := NewFactory().Build(context.Background(), domain.ProviderInstance{
		Type: domain.ProviderGoogleDrive,
		Name: "team",
	}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestProvider_ListDocuments(t *testing.T) {
	provider := newTestDriveProvider(t, newDriveStub(t))

	docs, err := provider.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3, "form has no text rendition and is dropped")

	byID := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	plain := byID["txt1"]
	assert.Equal(t, "notes.txt", plain.Filename)
	assert.Equal(t, "notes.txt", plain.RelativePath)
	assert.Equal(t, domain.ProviderGoogleDrive, plain.ProviderType)
	assert.Equal(t, "team", plain.ProviderName)
	assert.Equal(t, "md5a", plain.ETag)
	assert.Equal(t, time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC), plain.LastModified)
	assert.Equal(t, int64(15), plain.SizeBytes)

	exported := byID["gdoc1"]
	assert.Equal(t, "Design Doc.txt", exported.Filename, "export suffix routes to the text extractor")
	assert.Equal(t, "text/plain", exported.MimeType)
	assert.Equal(t, "2026-02-03T11:00:00Z", exported.ETag, "modification stamp stands in for a checksum")
	assert.Equal(t, int64(-1), exported.SizeBytes)

	nested := byID["nested1"]
	assert.Equal(t, "guides/setup.md", nested.RelativePath, "subfolders recursed with path prefix")
}

func TestProvider_ListDocuments_Unavailable(t *testing.T) {
	stub := newDriveStub(t)
	stub.listStatus = http.StatusInternalServerError
	provider := newTestDriveProvider(t, stub)

	_, err := provider.ListDocuments(context.Background())
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestProvider_DownloadDocument_PlainFile(t *testing.T) {
	provider := newTestDriveProvider(t, newDriveStub(t))

	body, err := provider.DownloadDocument(context.Background(), "txt1")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "plain file body", string(data))
}

func TestProvider_DownloadDocument_ExportsWorkspaceDoc(t *testing.T) {
	provider := newTestDriveProvider(t, newDriveStub(t))

	body, err := provider.DownloadDocument(context.Background(), "gdoc1")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "exported doc text", string(data))
}

func TestProvider_DownloadDocument_NotFound(t *testing.T) {
	provider := newTestDriveProvider(t, newDriveStub(t))

	_, err := provider.DownloadDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestProvider_Metadata(t *testing.T) {
	provider := newTestDriveProvider(t, newDriveStub(t))

	doc, err := provider.Metadata(context.Background(), "txt1")
	require.NoError(t, err)
	assert.Equal(t, "txt1", doc.ID)
	assert.Equal(t, "notes.txt", doc.Filename)
	assert.Equal(t, "md5a", doc.ETag)
	assert.Equal(t, int64(15), doc.SizeBytes)
}

func TestProvider_Probe(t *testing.T) {
	provider := newTestDriveProvider(t, newDriveStub(t))

	result := provider.Probe(context.Background())
	assert.True(t, result.OK)
	assert.Equal(t, "Team Docs", result.Detail)
	assert.Equal(t, -1, result.Documents)
}

func TestProvider_Probe_BadFolder(t *testing.T) {
	provider := newTestDriveProvider(t, newDriveStub(t))
	provider.folderID = "unknown"

	result := provider.Probe(context.Background())
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Detail)
}
