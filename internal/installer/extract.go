package installer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractZip unpacks a zip archive into dir, creating it if needed. No
// elevated privilege is required; dir lives under user-writable app data.
func extractZip(archivePath, dir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}

	for _, f := range r.File {
		if err := extractFile(f, dir); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, dir string) error {
	// Reject entries that would escape the extraction directory.
	dest := filepath.Join(dir, filepath.FromSlash(f.Name))
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(filepath.Separator)) {
		return fmt.Errorf("archive entry %q escapes extraction directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return nil
}
