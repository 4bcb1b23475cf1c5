package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/slipway-dev/slipway/types"
)

// manifestExt is the sidecar suffix for manifest entries.
const manifestExt = ".meta"

// FSStore is a filesystem-backed Store.
//
// Layout: {root}/{package}/{version}/{key}/{archive} with a msgpack
// {archive}.meta sidecar per entry. Opening the store sweeps expired
// entries across all versions of the package, which is what bounds
// retention without a daemon.
type FSStore struct {
	root string
	cfg  Config
	now  func() time.Time
}

// NewFSStore creates (and sweeps) a filesystem store rooted at root.
func NewFSStore(root string, cfg Config) (*FSStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &FSStore{root: root, cfg: cfg, now: time.Now}
	if err := os.MkdirAll(s.partitionDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create store partition: %w", err)
	}
	if err := s.sweepExpired(); err != nil {
		return nil, err
	}
	return s, nil
}

// partitionDir is this run's partition: {root}/{package}/{version}.
func (s *FSStore) partitionDir() string {
	return filepath.Join(s.root, s.cfg.PackageName, s.cfg.Version.String())
}

// Publish copies the archive under key and writes its manifest sidecar.
func (s *FSStore) Publish(_ context.Context, key, path string) (*ManifestEntry, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	digest, size, err := digestFile(path)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", key, err)
	}

	keyDir := filepath.Join(s.partitionDir(), key)
	if err := os.MkdirAll(keyDir, 0o755); err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	dest := filepath.Join(keyDir, name)
	if err := copyFile(path, dest); err != nil {
		return nil, fmt.Errorf("publish %s: %w", key, err)
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
	if err := os.WriteFile(dest+manifestExt, data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return entry, nil
}

// FetchAll copies every entry of the partition to destDir, grouped by key.
func (s *FSStore) FetchAll(ctx context.Context, destDir string) (map[string][]types.PackagedArtifact, error) {
	keys, err := os.ReadDir(s.partitionDir())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]types.PackagedArtifact{}, nil
		}
		return nil, err
	}

	out := make(map[string][]types.PackagedArtifact)
	for _, keyEntry := range keys {
		if !keyEntry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := keyEntry.Name()

		keyDir := filepath.Join(s.partitionDir(), key)
		files, err := os.ReadDir(keyDir)
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			if f.IsDir() || strings.HasSuffix(f.Name(), manifestExt) {
				continue
			}

			meta, err := os.ReadFile(filepath.Join(keyDir, f.Name()+manifestExt))
			if err != nil {
				// Archive without a manifest: publish was interrupted. Skip it
				// rather than hand a half-written archive to distribution.
				continue
			}
			entry, err := DecodeManifest(meta)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}

			localDir := filepath.Join(destDir, key)
			if err := os.MkdirAll(localDir, 0o755); err != nil {
				return nil, err
			}
			local := filepath.Join(localDir, f.Name())
			if err := copyFile(filepath.Join(keyDir, f.Name()), local); err != nil {
				return nil, fmt.Errorf("fetch %s/%s: %w", key, f.Name(), err)
			}

			out[key] = append(out[key], types.PackagedArtifact{
				Platform:  key,
				Name:      entry.Name,
				Path:      local,
				SizeBytes: entry.SizeBytes,
				SHA256:    entry.SHA256,
			})
		}

		sort.Slice(out[key], func(i, j int) bool { return out[key][i].Name < out[key][j].Name })
	}

	return out, nil
}

// Close is a no-op for the filesystem backend.
func (s *FSStore) Close() error { return nil }

// sweepExpired removes entries past their retention window across every
// version partition of the package.
func (s *FSStore) sweepExpired() error {
	pkgDir := filepath.Join(s.root, s.cfg.PackageName)
	now := s.now().UTC()

	return filepath.WalkDir(pkgDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, manifestExt) {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil // concurrent sweep; ignore
		}
		entry, err := DecodeManifest(data)
		if err != nil {
			// Unreadable manifest: remove both sidecar and archive.
			_ = os.Remove(path)
			_ = os.Remove(strings.TrimSuffix(path, manifestExt))
			return nil
		}

		if entry.Expired(now) {
			_ = os.Remove(path)
			_ = os.Remove(strings.TrimSuffix(path, manifestExt))
		}
		return nil
	})
}

// Verify FSStore implements Store.
var _ Store = (*FSStore)(nil)
