package store

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// ManifestEntry is the sidecar record written next to every stored archive.
// Entries are msgpack-encoded: they are machine handoff state read back by
// the fan-in stage, never meant for human editing.
type ManifestEntry struct {
	// Key is the store key (platform ID).
	Key string `msgpack:"key"`
	// Name is the archive file name.
	Name string `msgpack:"name"`
	// SizeBytes is the archive size.
	SizeBytes int64 `msgpack:"size_bytes"`
	// SHA256 is the hex digest of the archive contents.
	SHA256 string `msgpack:"sha256"`
	// Version is the release version the archive was built for.
	Version string `msgpack:"version"`
	// PublishedAt is the publish timestamp (UTC).
	PublishedAt time.Time `msgpack:"published_at"`
	// ExpiresAt is PublishedAt plus the retention window.
	ExpiresAt time.Time `msgpack:"expires_at"`
}

// Expired reports whether the entry is past its retention window at now.
func (e *ManifestEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// EncodeManifest serializes an entry to msgpack bytes.
func EncodeManifest(e *ManifestEntry) ([]byte, error) {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode manifest for %s: %w", e.Name, err)
	}
	return data, nil
}

// DecodeManifest deserializes msgpack bytes into an entry.
func DecodeManifest(data []byte) (*ManifestEntry, error) {
	var e ManifestEntry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &e, nil
}
