package pack

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/slipway-dev/slipway/iox"
)

// ZipPackager produces a .zip archive in-process.
// Entry names are relative to srcDir with forward slashes, so the archive
// layout is identical regardless of the host OS.
type ZipPackager struct{}

// Package writes a zip archive of srcDir to destPath.
func (p *ZipPackager) Package(ctx context.Context, srcDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer iox.DiscardClose(out)

	zw := zip.NewWriter(out)

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate

		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer iox.DiscardClose(f)

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return fmt.Errorf("zip %s: %w", srcDir, err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return out.Close()
}
