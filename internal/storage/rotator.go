package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Rotation triggers
	DefaultMaxRecords = 1000
	DefaultMaxAge     = 1 * time.Hour
)

// RotatorOptions configures a FileRotator. Zero values take the defaults.
type RotatorOptions struct {
	Prefix     string // file name prefix, "raw_matches" by default
	MaxRecords int
	MaxAge     time.Duration
	Logger     *slog.Logger
}

// FileRotator writes JSONL records to rotating files.
//
// Files are written under hot/ and moved to warm/ when they rotate or the
// rotator closes; the importer reads warm/ and archives to cold/.
type FileRotator struct {
	mu sync.Mutex

	hotDir  string
	warmDir string
	coldDir string

	prefix     string
	maxRecords int
	maxAge     time.Duration
	logger     *slog.Logger

	currentFile   *os.File
	currentWriter *bufio.Writer
	currentPath   string
	recordCount   int
	fileOpenedAt  time.Time
	seq           int
}

// NewFileRotator creates the hot/warm/cold layout under baseDir and opens the first file
func NewFileRotator(baseDir string, opts RotatorOptions) (*FileRotator, error) {
	r := &FileRotator{
		hotDir:     filepath.Join(baseDir, "hot"),
		warmDir:    filepath.Join(baseDir, "warm"),
		coldDir:    filepath.Join(baseDir, "cold"),
		prefix:     opts.Prefix,
		maxRecords: opts.MaxRecords,
		maxAge:     opts.MaxAge,
		logger:     opts.Logger,
	}
	if r.prefix == "" {
		r.prefix = "raw_matches"
	}
	if r.maxRecords <= 0 {
		r.maxRecords = DefaultMaxRecords
	}
	if r.maxAge <= 0 {
		r.maxAge = DefaultMaxAge
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.logger = r.logger.With("component", "rotator")

	for _, dir := range []string{r.hotDir, r.warmDir, r.coldDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := r.rotate(); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteLine marshals record and writes it as one line
func (r *FileRotator) WriteLine(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return r.WriteRaw(data)
}

// WriteRaw writes data as one line. data must not contain a newline except
// an optional trailing one.
func (r *FileRotator) WriteRaw(data []byte) error {
	data, err := singleLine(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLine(data)
}

// WriteRecord writes each of lines as one line and completes the record in a
// single critical section, so a concurrent rotation never splits it across files.
func (r *FileRotator) WriteRecord(lines ...any) error {
	encoded := make([][]byte, 0, len(lines))
	for _, line := range lines {
		data, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		if data, err = singleLine(data); err != nil {
			return err
		}
		encoded = append(encoded, data)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, data := range encoded {
		if err := r.writeLine(data); err != nil {
			return err
		}
	}
	return r.complete()
}

// RecordComplete marks the end of one logical record (one match, or all
// cells of one match), flushes, and rotates if a trigger was reached.
func (r *FileRotator) RecordComplete() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.complete()
}

func singleLine(data []byte) ([]byte, error) {
	data = bytes.TrimRight(data, "\r\n")
	if bytes.IndexByte(data, '\n') >= 0 {
		return nil, fmt.Errorf("record spans multiple lines")
	}
	return data, nil
}

// writeLine appends data and a newline. r.mu must be held.
func (r *FileRotator) writeLine(data []byte) error {
	if r.currentWriter == nil {
		return fmt.Errorf("rotator is closed")
	}
	if _, err := r.currentWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := r.currentWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// complete counts one record, flushes and rotates if due. r.mu must be held.
func (r *FileRotator) complete() error {
	if r.currentWriter == nil {
		return fmt.Errorf("rotator is closed")
	}
	r.recordCount++

	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	if r.shouldRotate() {
		return r.rotate()
	}
	return nil
}

func (r *FileRotator) shouldRotate() bool {
	if r.currentFile == nil {
		return true
	}
	if r.recordCount >= r.maxRecords {
		return true
	}
	return time.Since(r.fileOpenedAt) >= r.maxAge
}

// rotate closes the current file, moves it to warm, and opens a new one
func (r *FileRotator) rotate() error {
	if r.currentFile != nil {
		if err := r.closeCurrent(); err != nil {
			return err
		}
	}

	r.seq++
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s_%04d.jsonl", r.prefix, timestamp, r.seq)
	r.currentPath = filepath.Join(r.hotDir, filename)

	file, err := os.Create(r.currentPath)
	if err != nil {
		return fmt.Errorf("failed to create new file: %w", err)
	}

	r.currentFile = file
	r.currentWriter = bufio.NewWriterSize(file, 64*1024)
	r.recordCount = 0
	r.fileOpenedAt = time.Now()

	r.logger.Debug("Opened new file", "file", filename)
	return nil
}

// closeCurrent flushes and closes the open file. Files holding records move
// to warm; empty files are removed.
func (r *FileRotator) closeCurrent() error {
	if err := r.currentWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := r.currentFile.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	name := filepath.Base(r.currentPath)
	r.currentFile = nil
	r.currentWriter = nil

	if r.recordCount == 0 {
		os.Remove(r.currentPath)
		return nil
	}

	warmPath := filepath.Join(r.warmDir, name)
	if err := os.Rename(r.currentPath, warmPath); err != nil {
		return fmt.Errorf("failed to move to warm storage: %w", err)
	}
	r.logger.Info("Moved file to warm storage", "file", name, "records", r.recordCount)
	return nil
}

// Close flushes and closes the current file
func (r *FileRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentFile == nil {
		return nil
	}
	return r.closeCurrent()
}

// Stats returns current rotator statistics
func (r *FileRotator) Stats() (recordsInCurrentFile int, currentFileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recordCount, filepath.Base(r.currentPath)
}
