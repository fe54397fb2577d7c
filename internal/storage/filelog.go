package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/carolinuci/spacetime-crawler/internal/config"
)

// FileLog appends discovered links to a text file. Each Append issues a
// single write so records from concurrent workers never interleave.
type FileLog struct {
	mu     sync.Mutex
	file   *os.File
	format string
}

// OpenFileLog opens (or creates) the log for appending.
func OpenFileLog(cfg config.LinkLogConfig) (*FileLog, error) {
	format := cfg.Format
	if format == "" {
		format = config.LogFormatURLs
	}
	if format != config.LogFormatURLs && format != config.LogFormatSummary {
		return nil, fmt.Errorf("unsupported link log format %q", format)
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create link log dir: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open link log: %w", err)
	}
	return &FileLog{file: f, format: format}, nil
}

// Append writes one record. In urls format a record without links writes
// nothing.
func (l *FileLog) Append(_ context.Context, rec Record) error {
	var buf bytes.Buffer
	switch l.format {
	case config.LogFormatSummary:
		buf.WriteString(rec.SourceURL)
		buf.WriteString(" - ")
		buf.WriteString(strconv.Itoa(len(rec.Links)))
		buf.WriteByte('\n')
	default:
		for _, link := range rec.Links {
			buf.WriteString(link)
			buf.WriteByte('\n')
		}
	}
	if buf.Len() == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return os.ErrClosed
	}
	if _, err := l.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write link log: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
