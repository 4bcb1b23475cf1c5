package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{PackageName: "demo", Version: "v1.2.3"}
}

func writeArchive(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFSStore_PublishAndFetchAll(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	linuxZip := writeArchive(t, "demo-v1.2.3-linux.zip", "linux-archive")
	winZip := writeArchive(t, "demo-v1.2.3-windows.zip", "windows-archive")

	if _, err := s.Publish(context.Background(), "linux", linuxZip); err != nil {
		t.Fatalf("publish linux: %v", err)
	}
	if _, err := s.Publish(context.Background(), "windows", winZip); err != nil {
		t.Fatalf("publish windows: %v", err)
	}

	got, err := s.FetchAll(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d keys, want 2: %v", len(got), got)
	}
	if got["linux"][0].Name != "demo-v1.2.3-linux.zip" {
		t.Errorf("linux artifact name = %q", got["linux"][0].Name)
	}
	if got["windows"][0].Name != "demo-v1.2.3-windows.zip" {
		t.Errorf("windows artifact name = %q", got["windows"][0].Name)
	}

	data, err := os.ReadFile(got["linux"][0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "linux-archive" {
		t.Errorf("fetched contents = %q", data)
	}
}

func TestFSStore_PublishOverwrites(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root, testConfig())
	if err != nil {
		t.Fatal(err)
	}

	first := writeArchive(t, "demo-v1.2.3-linux.zip", "first")
	if _, err := s.Publish(context.Background(), "linux", first); err != nil {
		t.Fatal(err)
	}

	// Same name, different bytes: a re-run of the same version.
	second := writeArchive(t, "demo-v1.2.3-linux.zip", "second-run-bytes")
	entry, err := s.Publish(context.Background(), "linux", second)
	if err != nil {
		t.Fatalf("re-publish failed: %v", err)
	}
	if entry.SizeBytes != int64(len("second-run-bytes")) {
		t.Errorf("entry size = %d", entry.SizeBytes)
	}

	got, err := s.FetchAll(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(got["linux"]) != 1 {
		t.Fatalf("expected exactly one linux entry after overwrite, got %d", len(got["linux"]))
	}

	data, _ := os.ReadFile(got["linux"][0].Path)
	if string(data) != "second-run-bytes" {
		t.Errorf("fetched contents = %q, want the second run's bytes", data)
	}
}

func TestFSStore_EmptyKeyRejected(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	archive := writeArchive(t, "demo.zip", "x")
	if _, err := s.Publish(context.Background(), "", archive); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestFSStore_RetentionSweep(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig()
	cfg.Retention = time.Hour

	s, err := NewFSStore(root, cfg)
	if err != nil {
		t.Fatal(err)
	}

	archive := writeArchive(t, "demo-v1.2.3-linux.zip", "x")
	if _, err := s.Publish(context.Background(), "linux", archive); err != nil {
		t.Fatal(err)
	}

	// Reopen with a clock two hours ahead: the entry is past retention.
	late := &FSStore{root: root, cfg: cfg, now: func() time.Time { return time.Now().Add(2 * time.Hour) }}
	if err := late.sweepExpired(); err != nil {
		t.Fatal(err)
	}

	got, err := s.FetchAll(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected swept store to be empty, got %v", got)
	}
}

func TestFSStore_FetchAllEmptyPartition(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), testConfig())
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.FetchAll(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	entry := &ManifestEntry{
		Key:         "linux",
		Name:        "demo-v1.2.3-linux.zip",
		SizeBytes:   42,
		SHA256:      "abc123",
		Version:     "v1.2.3",
		PublishedAt: now,
		ExpiresAt:   now.Add(DefaultRetention),
	}

	data, err := EncodeManifest(entry)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeManifest(data)
	if err != nil {
		t.Fatal(err)
	}

	if got.Key != entry.Key || got.Name != entry.Name || got.SizeBytes != entry.SizeBytes || got.SHA256 != entry.SHA256 {
		t.Errorf("round trip mismatch: %+v vs %+v", got, entry)
	}
	if got.Expired(now) {
		t.Error("fresh entry reported expired")
	}
	if !got.Expired(now.Add(DefaultRetention + time.Second)) {
		t.Error("stale entry not reported expired")
	}
}
