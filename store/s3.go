package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/slipway-dev/slipway/iox"
	"github.com/slipway-dev/slipway/types"
)

// S3Config holds configuration for the S3 storage backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	parts := strings.SplitN(p, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// s3API is the subset of the S3 client the store uses. Injected for testing.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store is an S3-backed Store.
//
// Object keys: {prefix}/{package}/{version}/{key}/{archive} with a msgpack
// .meta sidecar per entry. Retention relies on a bucket lifecycle rule for
// physical deletion; entries additionally carry expires_at in the manifest
// and FetchAll ignores expired ones, so behavior matches the FS backend
// even on buckets without a lifecycle rule.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	cfg    Config
	now    func() time.Time
}

// NewS3Store creates an S3 store using the AWS SDK default credential chain
// (env vars, shared config, IAM role).
func NewS3Store(ctx context.Context, s3cfg S3Config, cfg Config) (*S3Store, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if s3cfg.Endpoint != "" {
		endpoint := s3cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if s3cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3Store(s3.NewFromConfig(awsConfig, s3Opts...), s3cfg, cfg), nil
}

// newS3Store wires an S3Store around any s3API (real or fake).
func newS3Store(client s3API, s3cfg S3Config, cfg Config) *S3Store {
	return &S3Store{
		client: client,
		bucket: s3cfg.Bucket,
		prefix: s3cfg.Prefix,
		cfg:    cfg,
		now:    time.Now,
	}
}

// partitionPrefix is this run's object key prefix.
func (s *S3Store) partitionPrefix() string {
	return path.Join(s.prefix, s.cfg.PackageName, s.cfg.Version.String()) + "/"
}

// objectKey builds the object key for an archive under a store key.
func (s *S3Store) objectKey(key, name string) string {
	return path.Join(s.prefix, s.cfg.PackageName, s.cfg.Version.String(), key, name)
}

// Publish uploads the archive and its manifest sidecar.
// PutObject overwrites by nature, so re-runs are idempotent.
func (s *S3Store) Publish(ctx context.Context, key, filePath string) (*ManifestEntry, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	digest, size, err := digestFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", key, err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(f)

	name := filepath.Base(filePath)
	objKey := s.objectKey(key, name)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
		Body:   f,
	}); err != nil {
		return nil, fmt.Errorf("put %s: %w", objKey, err)
	}

	now := s.now().UTC()
	entry := &ManifestEntry{
		Key:         key,
		Name:        name,
		SizeBytes:   size,
		SHA256:      digest,
		Version:     s.cfg.Version.String(),
		PublishedAt: now,
		ExpiresAt:   now.Add(s.cfg.retention()),
	}

	data, err := EncodeManifest(entry)
	if err != nil {
		return nil, err
	}
	metaKey := objKey + manifestExt
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &metaKey,
		Body:   bytes.NewReader(data),
	}); err != nil {
		return nil, fmt.Errorf("put %s: %w", metaKey, err)
	}

	return entry, nil
}

// FetchAll lists the partition, downloads every unexpired entry to destDir,
// and returns the local artifacts grouped by key.
func (s *S3Store) FetchAll(ctx context.Context, destDir string) (map[string][]types.PackagedArtifact, error) {
	prefix := s.partitionPrefix()
	out := make(map[string][]types.PackagedArtifact)
	now := s.now().UTC()

	var continuation *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.HasSuffix(*obj.Key, manifestExt) {
				continue
			}

			entry, err := s.readManifest(ctx, *obj.Key)
			if err != nil {
				return nil, err
			}
			if entry.Expired(now) {
				continue
			}

			local, err := s.download(ctx, strings.TrimSuffix(*obj.Key, manifestExt), destDir, entry.Key, entry.Name)
			if err != nil {
				return nil, err
			}

			out[entry.Key] = append(out[entry.Key], types.PackagedArtifact{
				Platform:  entry.Key,
				Name:      entry.Name,
				Path:      local,
				SizeBytes: entry.SizeBytes,
				SHA256:    entry.SHA256,
			})
		}

		if page.NextContinuationToken == nil {
			break
		}
		continuation = page.NextContinuationToken
	}

	for key := range out {
		sort.Slice(out[key], func(i, j int) bool { return out[key][i].Name < out[key][j].Name })
	}
	return out, nil
}

// readManifest fetches and decodes one manifest sidecar.
func (s *S3Store) readManifest(ctx context.Context, key string) (*ManifestEntry, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer iox.DiscardClose(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return DecodeManifest(data)
}

// download fetches one archive object into destDir/{storeKey}/{name}.
func (s *S3Store) download(ctx context.Context, objKey, destDir, storeKey, name string) (string, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &objKey})
	if err != nil {
		return "", fmt.Errorf("get %s: %w", objKey, err)
	}
	defer iox.DiscardClose(resp.Body)

	localDir := filepath.Join(destDir, storeKey)
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return "", err
	}

	local := filepath.Join(localDir, name)
	f, err := os.Create(local)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("download %s: %w", objKey, err)
	}
	return local, f.Close()
}

// Close is a no-op; the SDK client holds no resources needing release here.
func (s *S3Store) Close() error { return nil }

// Verify S3Store implements Store.
var _ Store = (*S3Store)(nil)
