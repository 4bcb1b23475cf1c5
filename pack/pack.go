// Package pack produces platform-appropriate archives from a staged
// build-output directory.
//
// Packaging is polymorphic over the platform's packaging format: zip and
// tar.gz are produced in-process; disk images are delegated to an external
// imaging tool and only its exit status is consumed.
package pack

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/slipway-dev/slipway/types"
)

// Packager compresses a staged output directory into a single archive.
type Packager interface {
	// Package writes the archive for srcDir to destPath, overwriting any
	// existing file at destPath (re-runs are overwrite-idempotent).
	Package(ctx context.Context, srcDir, destPath string) error
}

// ToolRunner executes an external packaging tool and returns an error
// carrying captured stderr when the tool exits non-zero.
// Injected for testing; nil selects the real exec-based runner.
type ToolRunner func(ctx context.Context, name string, args ...string) error

// Options configures packager construction.
type Options struct {
	// VolumeName is the disk-image volume label (disk images only).
	VolumeName string
	// DiskImageTool is the external imaging tool (default "hdiutil").
	DiskImageTool string
	// Runner overrides external tool execution (for testing).
	Runner ToolRunner
}

// ForFormat returns the packager for a packaging format.
func ForFormat(format types.PackagingFormat, opts Options) (Packager, error) {
	switch format {
	case types.FormatZip:
		return &ZipPackager{}, nil
	case types.FormatTarGz:
		return &TarGzPackager{}, nil
	case types.FormatDiskImage:
		return NewDiskImagePackager(opts), nil
	default:
		return nil, fmt.Errorf("no packager for format %q", format)
	}
}

// runTool is the default ToolRunner built on os/exec.
func runTool(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
