// Package store implements the artifact store used to hand archives between
// pipeline stages.
//
// The store is short-lived handoff state, not long-term storage: entries are
// keyed by platform ID under a {package}/{version} partition and carry a
// bounded retention window. Re-publishing a key overwrites, which is what
// makes full pipeline re-runs for the same version safe.
//
// Two backends exist: a filesystem store (default) and an S3 store for
// pipelines whose stages run on separate hosts.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/slipway-dev/slipway/iox"
	"github.com/slipway-dev/slipway/types"
)

// DefaultRetention bounds how long published entries are kept.
const DefaultRetention = 7 * 24 * time.Hour

// ErrEmptyKey is returned when publishing under an empty key.
var ErrEmptyKey = errors.New("artifact key must be non-empty")

// Config holds the partition identity and retention for one pipeline run.
type Config struct {
	// PackageName partitions entries by project.
	PackageName string
	// Version partitions entries by resolved release version.
	Version types.Version
	// Retention bounds entry lifetime (default DefaultRetention).
	Retention time.Duration
}

// retention returns the configured retention or the default.
func (c Config) retention() time.Duration {
	if c.Retention <= 0 {
		return DefaultRetention
	}
	return c.Retention
}

// validate checks partition identity.
func (c Config) validate() error {
	if c.PackageName == "" {
		return errors.New("store config: package name must be non-empty")
	}
	return c.Version.Validate()
}

// Store publishes archives and fetches them back, grouped by key.
type Store interface {
	// Publish stores the file under key, overwriting any previous entry for
	// the same key and file name. Returns the recorded manifest entry.
	Publish(ctx context.Context, key, path string) (*ManifestEntry, error)

	// FetchAll downloads every entry of this run's partition into destDir
	// and returns the local artifacts grouped by key. Keys with no entries
	// are simply absent from the map.
	FetchAll(ctx context.Context, destDir string) (map[string][]types.PackagedArtifact, error)

	// Close releases backend resources.
	Close() error
}

// digestFile computes the hex SHA-256 digest and size of a file.
func digestFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer iox.DiscardClose(f)

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// copyFile copies src to dest, overwriting dest.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(in)

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
