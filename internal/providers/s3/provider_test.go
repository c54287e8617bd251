package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlhq/trawl/internal/core/domain"
)

type fakeObject struct {
	key      string
	etag     string
	modified time.Time
	body     string
}

// fakeS3 implements the api interface over a fixed object set, split into
// pages to exercise the paginator.
type fakeS3 struct {
	objects  []fakeObject
	pageSize int

	listErr error
	headErr error
}

func (f *fakeS3) ListObjectsV2(_ context.Context, params *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	prefix := aws.ToString(params.Prefix)
	var matched []fakeObject
	for _, obj := range f.objects {
		if strings.HasPrefix(obj.key, prefix) {
			matched = append(matched, obj)
		}
	}

	start := 0
	if token := aws.ToString(params.ContinuationToken); token != "" {
		for i, obj := range matched {
			if obj.key == token {
				start = i
				break
			}
		}
	}

	pageSize := f.pageSize
	if pageSize == 0 {
		pageSize = len(matched)
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	out := &awss3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(matched))}
	for _, obj := range matched[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(obj.key),
			ETag:         aws.String(`"` + obj.etag + `"`),
			LastModified: aws.Time(obj.modified),
			Size:         aws.Int64(int64(len(obj.body))),
		})
	}
	if end < len(matched) {
		out.NextContinuationToken = aws.String(matched[end].key)
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	for _, obj := range f.objects {
		if obj.key == aws.ToString(params.Key) {
			return &awss3.GetObjectOutput{
				Body:          io.NopCloser(strings.NewReader(obj.body)),
				ContentLength: aws.Int64(int64(len(obj.body))),
			}, nil
		}
	}
	return nil, &types.NoSuchKey{}
}

func (f *fakeS3) HeadObject(_ context.Context, params *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	for _, obj := range f.objects {
		if obj.key == aws.ToString(params.Key) {
			return &awss3.HeadObjectOutput{
				ETag:          aws.String(`"` + obj.etag + `"`),
				LastModified:  aws.Time(obj.modified),
				ContentLength: aws.Int64(int64(len(obj.body))),
				ContentType:   aws.String("text/plain"),
			}, nil
		}
	}
	return nil, &types.NotFound{}
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *awss3.HeadBucketInput, _ ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &awss3.HeadBucketOutput{}, nil
}

func newTestS3Provider(client api, prefix string) *Provider {
	return &Provider{
		name:   "archive",
		client: client,
		bucket: "docs",
		prefix: prefix,
	}
}

func TestFactory_Metadata(t *testing.T) {
	factory := NewFactory()
	assert.Equal(t, domain.ProviderS3, factory.Type())
	assert.Equal(t, []string{"bucket"}, factory.RequiredOptions())
	assert.Equal(t, []string{"access_key_id", "secret_access_key"}, factory.SecretOptions())
}

func TestFactory_Build_MissingBucket(t *testing.T) {
	_, err := NewFactory().Build(context.Background(), domain.ProviderInstance{
		Type: domain.ProviderS3,
		Name: "archive",
	}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestProvider_ListDocuments(t *testing.T) {
	modified := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeS3{objects: []fakeObject{
		{key: "reports/q1.txt", etag: "abc123", modified: modified, body: "q1 numbers"},
		{key: "reports/", etag: "folder", modified: modified},
		{key: "readme.md", etag: "def456", modified: modified, body: "hello"},
	}}

	provider := newTestS3Provider(client, "")

	docs, err := provider.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2, "folder placeholder keys are skipped")

	byID := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	doc := byID["reports/q1.txt"]
	assert.Equal(t, "q1.txt", doc.Filename)
	assert.Equal(t, "reports/q1.txt", doc.RelativePath)
	assert.Equal(t, domain.ProviderS3, doc.ProviderType)
	assert.Equal(t, "archive", doc.ProviderName)
	assert.Equal(t, "abc123", doc.ETag, "etag is unquoted")
	assert.Equal(t, modified, doc.LastModified)
	assert.Equal(t, int64(len("q1 numbers")), doc.SizeBytes)
}

func TestProvider_ListDocuments_Paginates(t *testing.T) {
	modified := time.Now()
	client := &fakeS3{pageSize: 2, objects: []fakeObject{
		{key: "a.txt", etag: "1", modified: modified, body: "a"},
		{key: "b.txt", etag: "2", modified: modified, body: "b"},
		{key: "c.txt", etag: "3", modified: modified, body: "c"},
		{key: "d.txt", etag: "4", modified: modified, body: "d"},
		{key: "e.txt", etag: "5", modified: modified, body: "e"},
	}}

	provider := newTestS3Provider(client, "")

	docs, err := provider.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 5)
}

func TestProvider_ListDocuments_PrefixScopesAndStripping(t *testing.T) {
	client := &fakeS3{objects: []fakeObject{
		{key: "team/docs/handbook.txt", etag: "1", modified: time.Now(), body: "x"},
		{key: "other/irrelevant.txt", etag: "2", modified: time.Now(), body: "y"},
	}}

	provider := newTestS3Provider(client, "team/docs")

	docs, err := provider.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "team/docs/handbook.txt", docs[0].ID, "id is the full key")
	assert.Equal(t, "handbook.txt", docs[0].RelativePath, "relative path drops the prefix")
}

func TestProvider_ListDocuments_Unavailable(t *testing.T) {
	client := &fakeS3{listErr: errors.New("connection refused")}
	provider := newTestS3Provider(client, "")

	_, err := provider.ListDocuments(context.Background())
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestProvider_DownloadDocument(t *testing.T) {
	client := &fakeS3{objects: []fakeObject{
		{key: "doc.txt", etag: "1", modified: time.Now(), body: "object body"},
	}}
	provider := newTestS3Provider(client, "")

	body, err := provider.DownloadDocument(context.Background(), "doc.txt")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "object body", string(data))
}

func TestProvider_DownloadDocument_NoSuchKey(t *testing.T) {
	provider := newTestS3Provider(&fakeS3{}, "")

	_, err := provider.DownloadDocument(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestProvider_Metadata(t *testing.T) {
	modified := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeS3{objects: []fakeObject{
		{key: "doc.txt", etag: "abc", modified: modified, body: "12345"},
	}}
	provider := newTestS3Provider(client, "")

	doc, err := provider.Metadata(context.Background(), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "abc", doc.ETag)
	assert.Equal(t, int64(5), doc.SizeBytes)
	assert.Equal(t, "text/plain", doc.MimeType)
}

func TestProvider_Metadata_NotFound(t *testing.T) {
	provider := newTestS3Provider(&fakeS3{}, "")

	_, err := provider.Metadata(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestProvider_Probe(t *testing.T) {
	provider := newTestS3Provider(&fakeS3{}, "reports")

	result := provider.Probe(context.Background())
	assert.True(t, result.OK)
	assert.Equal(t, "s3://docs/reports", result.Detail)
	assert.Equal(t, -1, result.Documents)
}

func TestProvider_Probe_Unreachable(t *testing.T) {
	provider := newTestS3Provider(&fakeS3{headErr: errors.New("access denied")}, "")

	result := provider.Probe(context.Background())
	assert.False(t, result.OK)
	assert.Contains(t, result.Detail, "access denied")
}
