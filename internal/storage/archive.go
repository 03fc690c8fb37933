package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CompressToCold gzips a warm file into coldDir and removes the original.
// Already compressed inputs are moved as they are.
func CompressToCold(warmPath, coldDir string) (string, error) {
	if err := os.MkdirAll(coldDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cold directory: %w", err)
	}

	if strings.HasSuffix(warmPath, ".gz") {
		coldPath := filepath.Join(coldDir, filepath.Base(warmPath))
		if err := os.Rename(warmPath, coldPath); err != nil {
			return "", fmt.Errorf("failed to move %s: %w", warmPath, err)
		}
		return coldPath, nil
	}

	src, err := os.Open(warmPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	coldPath := filepath.Join(coldDir, filepath.Base(warmPath)+".gz")
	tmpPath := coldPath + ".tmp"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", err
	}

	gz := gzip.NewWriter(dst)
	if _, err := io.Copy(gz, src); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to compress %s: %w", warmPath, err)
	}
	if err := gz.Close(); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, coldPath); err != nil {
		return "", err
	}

	src.Close()
	if err := os.Remove(warmPath); err != nil {
		return "", err
	}
	return coldPath, nil
}
