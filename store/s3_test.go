package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory s3API.
type fakeS3 struct {
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, *in.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for i := range keys {
		out.Contents = append(out.Contents, s3types.Object{Key: &keys[i]})
	}
	return out, nil
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in     string
		bucket string
		prefix string
	}{
		{"releases", "releases", ""},
		{"releases/demo", "releases", "demo"},
		{"releases/demo/nested", "releases", "demo/nested"},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.in)
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tt.in, bucket, prefix, tt.bucket, tt.prefix)
		}
	}
}

func TestS3Config_Validate(t *testing.T) {
	if err := (&S3Config{}).Validate(); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if err := (&S3Config{Bucket: "b"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestS3Store_PublishAndFetchAll(t *testing.T) {
	fake := newFakeS3()
	s := newS3Store(fake, S3Config{Bucket: "releases", Prefix: "ci"}, testConfig())

	archive := writeArchive(t, "demo-v1.2.3-linux.zip", "linux-archive")
	entry, err := s.Publish(context.Background(), "linux", archive)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if entry.SHA256 == "" || entry.SizeBytes == 0 {
		t.Errorf("manifest entry not populated: %+v", entry)
	}

	// Archive and sidecar live under the version partition.
	wantKey := "ci/demo/v1.2.3/linux/demo-v1.2.3-linux.zip"
	if _, ok := fake.objects[wantKey]; !ok {
		t.Fatalf("object %q not stored; have %v", wantKey, fake.objects)
	}
	if _, ok := fake.objects[wantKey+manifestExt]; !ok {
		t.Fatalf("manifest sidecar for %q not stored", wantKey)
	}

	got, err := s.FetchAll(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got["linux"]) != 1 {
		t.Fatalf("got %v, want one linux artifact", got)
	}

	data, err := os.ReadFile(got["linux"][0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "linux-archive" {
		t.Errorf("downloaded contents = %q", data)
	}
}

func TestS3Store_FetchAllSkipsOtherVersions(t *testing.T) {
	fake := newFakeS3()

	// Publish under v1.2.3.
	s123 := newS3Store(fake, S3Config{Bucket: "releases"}, Config{PackageName: "demo", Version: "v1.2.3"})
	archive := writeArchive(t, "demo-v1.2.3-linux.zip", "x")
	if _, err := s123.Publish(context.Background(), "linux", archive); err != nil {
		t.Fatal(err)
	}

	// A store scoped to v2.0.0 sees nothing.
	s200 := newS3Store(fake, S3Config{Bucket: "releases"}, Config{PackageName: "demo", Version: "v2.0.0"})
	got, err := s200.FetchAll(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("v2.0.0 partition should be empty, got %v", got)
	}
}
