package engine

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dotaloader/internal/importer"
)

// MaxLineSize is the longest input line accepted. Match documents with full
// ability upgrade lists can exceed a megabyte.
const MaxLineSize = 4 * 1024 * 1024

// inputPatterns are matched when a directory is given as input
var inputPatterns = []string{"*.jsonl", "*.json", "*.jsonl.gz"}

// ErrLineTooLong is returned when a split contains a line over MaxLineSize
var ErrLineTooLong = errors.New("line exceeds maximum size")

// Line is one non-empty input line and where it came from
type Line struct {
	Pos  importer.Position
	Data []byte
}

// ExpandInputs resolves files and directories into an ordered list of splits
func ExpandInputs(paths []string) ([]string, error) {
	var splits []string
	seen := make(map[string]bool)

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			splits = append(splits, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		var matches []string
		for _, pattern := range inputPatterns {
			m, err := filepath.Glob(filepath.Join(p, pattern))
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", p, err)
			}
			matches = append(matches, m...)
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return splits, nil
}

// readSplit calls fn for every non-empty line of path. Offsets are byte offsets
// of the line start within the (decompressed) stream.
func readSplit(ctx context.Context, path string, fn func(Line) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to open gzip %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	return scanLines(ctx, path, r, fn)
}

func scanLines(ctx context.Context, split string, r io.Reader, fn func(Line) error) error {
	var offset, next int64

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := bufio.ScanLines(data, atEOF)
		next += int64(advance)
		return advance, token, err
	})

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := offset
		offset = next

		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		line := Line{
			Pos:  importer.Position{Split: split, Offset: start},
			Data: append([]byte(nil), data...),
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%s at offset %d: %w", split, offset, ErrLineTooLong)
		}
		return fmt.Errorf("failed to read %s: %w", split, err)
	}
	return nil
}
