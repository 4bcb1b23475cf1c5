package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/slipway-dev/slipway/iox"
	"github.com/slipway-dev/slipway/log"
	"github.com/slipway-dev/slipway/metrics"
	"github.com/slipway-dev/slipway/pack"
	"github.com/slipway-dev/slipway/retry"
	"github.com/slipway-dev/slipway/store"
	"github.com/slipway-dev/slipway/toolchain"
	"github.com/slipway-dev/slipway/types"
)

// Attacher attaches an archive to the tagged release on the release host.
type Attacher interface {
	AttachAsset(ctx context.Context, tag, path string, overwrite bool) error
}

// JobResult is one platform build job's outcome.
//
// Publish and attach problems appear as warnings, not as job failure: the
// archive exists locally and the rest of the pipeline keeps going.
type JobResult struct {
	Platform string                  `json:"platform"`
	Status   types.JobStatus         `json:"status"`
	Artifact *types.PackagedArtifact `json:"artifact,omitempty"`
	Warnings []string                `json:"warnings,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// BuildDeps are the collaborators shared by all platform build jobs.
type BuildDeps struct {
	Toolchain *toolchain.Toolchain
	Store     store.Store
	// Attacher is nil when release upload is disabled.
	Attacher Attacher
	Pack     pack.Options
	Retry    retry.Policy
	Logger   *log.Logger
	Metrics  *metrics.Collector
}

// PlatformBuildJob builds, packages, and publishes one platform's artifact.
type PlatformBuildJob struct {
	PackageName string
	BinaryName  string
	WorkDir     string
	Version     types.Version
	Spec        types.PlatformSpec
	Deps        BuildDeps
}

// Execute runs the job. The returned error marks the job failed; a nil
// error with warnings on the result means the build and package succeeded
// but a best-effort upload did not.
func (j *PlatformBuildJob) Execute(ctx context.Context) (*JobResult, error) {
	logger := j.Deps.Logger.WithPlatform(j.Spec.ID)
	j.Deps.Metrics.IncBuildStarted()

	result := &JobResult{Platform: j.Spec.ID, Status: types.StatusRunning}

	fail := func(err error) (*JobResult, error) {
		j.Deps.Metrics.IncBuildFailed()
		result.Status = types.StatusFailure
		result.Error = err.Error()
		logger.Error("platform build failed", map[string]any{"error": err.Error()})
		return result, err
	}

	// Deterministic names: identical inputs give identical artifact names,
	// so a re-run overwrites instead of duplicating.
	base := types.ArtifactBaseName(j.PackageName, j.Version, j.Spec.ID)
	fileName := types.ArtifactFileName(j.PackageName, j.Version, j.Spec.ID, j.Spec.Format)
	stagingDir := filepath.Join(j.WorkDir, "stage", base)
	archivePath := filepath.Join(j.WorkDir, fileName)

	if err := j.Deps.Toolchain.Setup(ctx, j.Spec.Setup); err != nil {
		return fail(err)
	}

	if _, err := j.Deps.Toolchain.Build(ctx, toolchain.BuildRequest{
		Target:  j.Spec.Target,
		Profile: j.Spec.Profile,
		Flags:   j.Spec.Flags,
	}); err != nil {
		return fail(err)
	}

	if err := j.stage(stagingDir); err != nil {
		return fail(err)
	}

	if err := j.packageStaging(ctx, stagingDir, archivePath); err != nil {
		return fail(err)
	}
	iox.DiscardRemoveAll(stagingDir)

	artifact := &types.PackagedArtifact{
		Platform: j.Spec.ID,
		Name:     fileName,
		Path:     archivePath,
	}
	if info, err := os.Stat(archivePath); err == nil {
		artifact.SizeBytes = info.Size()
	}
	result.Artifact = artifact

	j.publish(ctx, logger, result, artifact)
	j.attach(ctx, logger, result, archivePath)

	j.Deps.Metrics.IncBuildSucceeded()
	result.Status = types.StatusSuccess
	logger.Info("platform build complete", map[string]any{
		"artifact": fileName,
		"warnings": len(result.Warnings),
	})
	return result, nil
}

// stage copies the built binary (plus the optional assets tree) into the
// staging directory that will be archived.
func (j *PlatformBuildJob) stage(stagingDir string) error {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	binaryName := j.BinaryName
	if j.Spec.Windows() {
		binaryName += ".exe"
	}
	src := j.Deps.Toolchain.BinaryPath(j.Spec.Target, j.Spec.Profile, j.BinaryName, j.Spec.Windows())
	if err := copyExecutable(src, filepath.Join(stagingDir, binaryName)); err != nil {
		return fmt.Errorf("stage binary: %w", err)
	}

	if j.Spec.Assets != "" {
		if _, err := os.Stat(j.Spec.Assets); err != nil {
			if os.IsNotExist(err) {
				// Binary-only releases are fine.
				return nil
			}
			return fmt.Errorf("stage assets: %w", err)
		}
		dest := filepath.Join(stagingDir, filepath.Base(j.Spec.Assets))
		if err := copyTree(j.Spec.Assets, dest); err != nil {
			return fmt.Errorf("stage assets: %w", err)
		}
	}
	return nil
}

// packageStaging archives the staging directory with the platform's format.
func (j *PlatformBuildJob) packageStaging(ctx context.Context, stagingDir, archivePath string) error {
	opts := j.Deps.Pack
	if opts.VolumeName == "" {
		opts.VolumeName = types.ArtifactBaseName(j.PackageName, j.Version, j.Spec.ID)
	}
	packager, err := pack.ForFormat(j.Spec.Format, opts)
	if err != nil {
		return err
	}
	if err := packager.Package(ctx, stagingDir, archivePath); err != nil {
		return fmt.Errorf("package %s: %w", j.Spec.Format, err)
	}
	return nil
}

// publish stores the archive under the platform key. Best-effort.
func (j *PlatformBuildJob) publish(ctx context.Context, logger *log.Logger, result *JobResult, artifact *types.PackagedArtifact) {
	if j.Deps.Store == nil {
		return
	}
	var entry *store.ManifestEntry
	err := retry.Do(ctx, j.Deps.Retry, func(ctx context.Context) error {
		var pubErr error
		entry, pubErr = j.Deps.Store.Publish(ctx, j.Spec.ID, artifact.Path)
		return pubErr
	})
	if err != nil {
		j.Deps.Metrics.IncPublishFailure()
		warn := fmt.Sprintf("publish to store failed: %v", err)
		result.Warnings = append(result.Warnings, warn)
		logger.Warn("artifact publish failed", map[string]any{"error": err.Error()})
		return
	}
	artifact.SHA256 = entry.SHA256
	artifact.SizeBytes = entry.SizeBytes
	j.Deps.Metrics.IncArtifactPublished()
}

// attach uploads the archive to the release host. Best-effort.
func (j *PlatformBuildJob) attach(ctx context.Context, logger *log.Logger, result *JobResult, archivePath string) {
	if j.Deps.Attacher == nil {
		return
	}
	if err := j.Deps.Attacher.AttachAsset(ctx, j.Version.String(), archivePath, true); err != nil {
		j.Deps.Metrics.IncAttachFailure()
		warn := fmt.Sprintf("attach to release failed: %v", err)
		result.Warnings = append(result.Warnings, warn)
		logger.Warn("release attach failed", map[string]any{"error": err.Error()})
		return
	}
	j.Deps.Metrics.IncAssetAttached()
}

// copyExecutable copies src to dest with the executable bit set.
func copyExecutable(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(in)

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// copyTree copies a directory tree.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer iox.DiscardClose(in)

		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}
