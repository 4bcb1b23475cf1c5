package types

import "fmt"

// ArtifactBaseName derives the deterministic artifact base name for one platform:
// {package_name}-{version}-{platform_id}. Identical inputs always produce the
// identical name, which is what makes re-runs overwrite instead of duplicate.
func ArtifactBaseName(packageName string, version Version, platformID string) string {
	return fmt.Sprintf("%s-%s-%s", packageName, version, platformID)
}

// ArtifactFileName derives the archive file name for one platform:
// {package_name}-{version}-{platform_id}.{ext}.
func ArtifactFileName(packageName string, version Version, platformID string, format PackagingFormat) string {
	return ArtifactBaseName(packageName, version, platformID) + format.Ext()
}

// PackagedArtifact is the compressed archive produced by one platform build.
// It is immutable after creation and is the unit exchanged between pipeline
// stages (published, later fetched, later pushed to distribution).
type PackagedArtifact struct {
	// Platform is the producing platform ID (also the store key and channel).
	Platform string `json:"platform"`
	// Name is the archive file name.
	Name string `json:"name"`
	// Path is the local filesystem path of the archive.
	Path string `json:"path"`
	// SizeBytes is the archive size.
	SizeBytes int64 `json:"size_bytes"`
	// SHA256 is the hex-encoded digest of the archive contents.
	SHA256 string `json:"sha256"`
}
