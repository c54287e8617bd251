// Package s3 implements the DocumentProvider interface for S3 and
// S3-compatible object stores (MinIO, Ceph RGW). Object keys double as
// document ids.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/trawlhq/trawl/internal/core/domain"
	"github.com/trawlhq/trawl/internal/core/ports/driven"
)

// Option keys understood by the s3 provider.
const (
	optBucket    = "bucket"
	optPrefix    = "prefix"
	optRegion    = "region"
	optEndpoint  = "endpoint"
	optAccessKey = "access_key_id"
	optSecretKey = "secret_access_key"
)

// defaultRegion is used when the instance does not name one. MinIO and
// other compatible stores accept any region.
const defaultRegion = "us-east-1"

// listPageSize bounds ListObjectsV2 pages.
const listPageSize = 1000

// api is the slice of the S3 client the provider uses. Narrowing it keeps
// tests off the network.
type api interface {
	awss3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
}

// Factory builds S3 bucket providers.
type Factory struct{}

// Ensure Factory implements the interface.
var _ driven.ProviderFactory = (*Factory)(nil)

// NewFactory creates an s3 provider factory.
func NewFactory() *Factory { return &Factory{} }

// Type identifies which provider type this factory builds.
func (f *Factory) Type() domain.ProviderType { return domain.ProviderS3 }

// RequiredOptions lists option keys that must be present before a provider
// can be built. Credentials are optional: without them the AWS default
// chain (environment, shared config, instance role) applies.
func (f *Factory) RequiredOptions() []string { return []string{optBucket} }

// SecretOptions lists option keys that hold credentials.
func (f *Factory) SecretOptions() []string { return []string{optAccessKey, optSecretKey} }

// Build constructs a provider for one bucket and prefix.
func (f *Factory) Build(ctx context.Context, inst domain.ProviderInstance, secrets driven.SecretSource) (driven.DocumentProvider, error) {
	bucket := inst.Option(optBucket, "")
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 provider %q has no bucket", domain.ErrInvalidConfiguration, inst.Name)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(inst.Option(optRegion, defaultRegion)),
	}
	if secrets != nil {
		accessKey := secrets.Secret(inst.Type, inst.Name, optAccessKey)
		secretKey := secrets.Secret(inst.Type, inst.Name, optSecretKey)
		if accessKey != "" && secretKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
		}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: loading aws config: %v", domain.ErrInvalidConfiguration, err)
	}

	endpoint := inst.Option(optEndpoint, "")
	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if endpoint != "" {
			// Path-style addressing keeps MinIO and friends happy.
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Provider{
		name:   inst.Name,
		client: client,
		bucket: bucket,
		prefix: strings.TrimPrefix(inst.Option(optPrefix, ""), "/"),
	}, nil
}

// Provider serves documents from one bucket, optionally under a key prefix.
type Provider struct {
	name   string
	client api
	bucket string
	prefix string
}

// Ensure Provider implements the interface.
var _ driven.DocumentProvider = (*Provider)(nil)

// Type identifies the provider implementation.
func (p *Provider) Type() domain.ProviderType { return domain.ProviderS3 }

// Name returns the configured instance name.
func (p *Provider) Name() string { return p.name }

// ListDocuments pages through the bucket and returns every object under the
// prefix. Zero-byte keys ending in "/" are folder placeholders and skipped.
func (p *Provider) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(listPageSize),
	}
	if p.prefix != "" {
		input.Prefix = aws.String(p.prefix)
	}

	var docs []domain.Document
	paginator := awss3.NewListObjectsV2Paginator(p.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: listing s3://%s/%s: %v", domain.ErrProviderUnavailable, p.bucket, p.prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			docs = append(docs, domain.Document{
				ID:           key,
				Filename:     path.Base(key),
				RelativePath: p.relative(key),
				ProviderType: domain.ProviderS3,
				ProviderName: p.name,
				ETag:         unquote(aws.ToString(obj.ETag)),
				LastModified: aws.ToTime(obj.LastModified),
				SizeBytes:    aws.ToInt64(obj.Size),
			})
		}
	}

	return docs, nil
}

// DownloadDocument streams one object's bytes.
func (p *Provider) DownloadDocument(ctx context.Context, id string) (io.ReadCloser, error) {
	out, err := p.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		if isMissingObject(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", domain.ErrDocumentNotFound, p.bucket, id)
		}
		return nil, fmt.Errorf("%w: fetching s3://%s/%s: %v", domain.ErrProviderUnavailable, p.bucket, id, err)
	}
	return out.Body, nil
}

// Metadata heads one object without downloading it.
func (p *Provider) Metadata(ctx context.Context, id string) (domain.Document, error) {
	out, err := p.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		if isMissingObject(err) {
			return domain.Document{}, fmt.Errorf("%w: s3://%s/%s", domain.ErrDocumentNotFound, p.bucket, id)
		}
		return domain.Document{}, fmt.Errorf("%w: heading s3://%s/%s: %v", domain.ErrProviderUnavailable, p.bucket, id, err)
	}

	return domain.Document{
		ID:           id,
		Filename:     path.Base(id),
		RelativePath: p.relative(id),
		ProviderType: domain.ProviderS3,
		ProviderName: p.name,
		ETag:         unquote(aws.ToString(out.ETag)),
		LastModified: aws.ToTime(out.LastModified),
		SizeBytes:    aws.ToInt64(out.ContentLength),
		MimeType:     aws.ToString(out.ContentType),
	}, nil
}

// Probe heads the bucket, which exercises credentials and reachability
// without touching any object.
func (p *Provider) Probe(ctx context.Context) domain.ProbeResult {
	_, err := p.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		return domain.ProbeResult{Detail: err.Error(), Documents: -1}
	}

	detail := "s3://" + p.bucket
	if p.prefix != "" {
		detail += "/" + p.prefix
	}
	return domain.ProbeResult{OK: true, Detail: detail, Documents: -1}
}

// Close releases nothing; the SDK client holds no persistent connections
// worth tearing down.
func (p *Provider) Close() error { return nil }

// relative strips the configured prefix from an object key.
func (p *Provider) relative(key string) string {
	rel := strings.TrimPrefix(key, p.prefix)
	return strings.TrimPrefix(rel, "/")
}

// unquote removes the quoting S3 puts around etags.
func unquote(etag string) string {
	return strings.Trim(etag, `"`)
}

// isMissingObject detects the SDK's missing-key error shapes. GetObject
// reports NoSuchKey, HeadObject a bare NotFound.
func isMissingObject(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
