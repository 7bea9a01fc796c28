package repositories

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/ps-vitor/offplan-sys/backend/internal/domain"
)

// AppendLog is a newline-delimited JSON file that is only ever appended to.
// Each record is written with a single write call so a killed process loses
// at most the line being written.
type AppendLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenAppendLog opens or creates path for appending.
func OpenAppendLog(path string) (*AppendLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open append log: %w", err)
	}
	return &AppendLog{file: f}, nil
}

// Append writes v as one JSON line.
func (l *AppendLog) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode log line: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("append log line: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *AppendLog) Close() error {
	return l.file.Close()
}

// ReadLog returns every JSON object in a newline-delimited log. Blank lines,
// lines that fail to parse and non-object values are skipped, since the last
// line of a log may be truncated by a crash. A missing file is an empty log.
func ReadLog(path string) ([]domain.Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var records []domain.Record
	reader := bufio.NewReader(f)
	for {
		line, readErr := reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			if v, err := domain.DecodeValue(line); err == nil {
				if rec, ok := domain.AsRecord(v); ok {
					records = append(records, rec)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read log: %w", readErr)
		}
	}
	return records, nil
}
