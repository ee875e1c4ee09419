package nifti

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// IsCompressed reports whether path names a gzipped NIfTI file.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// Decompress inflates the gzipped file src into dir and returns the path of
// the written .nii file.
func Decompress(src, dir string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("failed to open gzip stream %s: %w", src, err)
	}
	defer zr.Close()

	name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	if !strings.HasSuffix(strings.ToLower(name), ".nii") {
		name += ".nii"
	}
	dst := filepath.Join(dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to decompress %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}
