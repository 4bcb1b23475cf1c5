package pack

import "context"

// DefaultDiskImageTool is the imaging tool used when none is configured.
const DefaultDiskImageTool = "hdiutil"

// DiskImagePackager produces an OS disk image by invoking an external
// imaging tool. The tool is an opaque collaborator: the packager only
// consumes its exit status and the file it writes at destPath.
type DiskImagePackager struct {
	volumeName string
	tool       string
	runner     ToolRunner
}

// NewDiskImagePackager creates a disk-image packager from options.
func NewDiskImagePackager(opts Options) *DiskImagePackager {
	tool := opts.DiskImageTool
	if tool == "" {
		tool = DefaultDiskImageTool
	}
	runner := opts.Runner
	if runner == nil {
		runner = runTool
	}
	volume := opts.VolumeName
	if volume == "" {
		volume = "Release"
	}
	return &DiskImagePackager{volumeName: volume, tool: tool, runner: runner}
}

// Package creates a compressed disk image of srcDir at destPath.
// -ov overwrites an existing image so re-runs stay idempotent.
func (p *DiskImagePackager) Package(ctx context.Context, srcDir, destPath string) error {
	return p.runner(ctx, p.tool,
		"create",
		"-volname", p.volumeName,
		"-srcfolder", srcDir,
		"-ov",
		"-format", "UDZO",
		destPath,
	)
}
