package types

import (
	"fmt"
	"strings"
)

// PackagingFormat selects the archive type produced for a platform.
type PackagingFormat string

// Supported packaging formats.
const (
	// FormatZip produces a .zip archive (in-process).
	FormatZip PackagingFormat = "zip"
	// FormatTarGz produces a .tar.gz archive (in-process).
	FormatTarGz PackagingFormat = "tar.gz"
	// FormatDiskImage produces an OS disk image (.dmg) via an external tool.
	FormatDiskImage PackagingFormat = "dmg"
)

// Ext returns the archive file extension including the leading dot.
func (f PackagingFormat) Ext() string {
	switch f {
	case FormatZip:
		return ".zip"
	case FormatTarGz:
		return ".tar.gz"
	case FormatDiskImage:
		return ".dmg"
	default:
		return ""
	}
}

// Valid returns true for a known packaging format.
func (f PackagingFormat) Valid() bool {
	return f.Ext() != ""
}

// PlatformSpec is the static descriptor for one build target.
// Instances are created at pipeline-definition time and never mutated at run time.
type PlatformSpec struct {
	// ID is the platform identifier (e.g. "linux", "windows", "macos").
	// It doubles as the artifact-store key and the distribution channel.
	ID string `yaml:"id"`
	// Target is the compile target triple passed to the toolchain.
	Target string `yaml:"target"`
	// Profile is the build profile (e.g. "release").
	Profile string `yaml:"profile"`
	// Format is the packaging format for this platform.
	Format PackagingFormat `yaml:"format"`
	// Flags are extra toolchain flags appended to the build invocation.
	Flags []string `yaml:"flags,omitempty"`
	// Setup is an optional prerequisite command (argv) run before the build.
	Setup []string `yaml:"setup,omitempty"`
	// Assets is an optional directory staged alongside the binary before
	// packaging. A missing directory is tolerated.
	Assets string `yaml:"assets,omitempty"`
}

// Validate checks the spec fields required to schedule a build.
func (p *PlatformSpec) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("platform id must be non-empty")
	}
	if strings.ContainsAny(p.ID, "/\\ ") {
		return fmt.Errorf("platform id %q must not contain separators or spaces", p.ID)
	}
	if p.Target == "" {
		return fmt.Errorf("platform %s: compile target must be non-empty", p.ID)
	}
	if !p.Format.Valid() {
		return fmt.Errorf("platform %s: unknown packaging format %q", p.ID, p.Format)
	}
	return nil
}

// Channel returns the distribution channel for this platform.
// Channels are equal to the platform ID.
func (p *PlatformSpec) Channel() string { return p.ID }

// Windows reports whether the platform targets Windows.
// Used to append .exe to the staged binary name.
func (p *PlatformSpec) Windows() bool {
	return strings.Contains(p.Target, "windows") || p.ID == "windows"
}
