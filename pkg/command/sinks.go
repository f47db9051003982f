package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/sdu-escience/gridgate/internal/logger"
)

// Sink is an append-only destination for command records.
//
// Implementations must tolerate concurrent Append calls.
type Sink interface {
	Append(ctx context.Context, r Record) error
	Close() error
}

// ============================================================================
// File sink
// ============================================================================

// sharedFile is one open log file, shared by every FileSink on the same path
// so that appends from many sessions are serialized on a single mutex.
type sharedFile struct {
	mu   sync.Mutex
	f    *os.File
	path string
	refs int
}

var (
	openFilesMu sync.Mutex
	openFiles   = map[string]*sharedFile{}
)

// FileSink writes records as JSON lines to an append-only file.
type FileSink struct {
	file      *sharedFile
	closeOnce sync.Once
}

// OpenFileSink opens (or creates) the log file at path for appending.
//
// Sinks opened on the same path share one file handle and one lock.
func OpenFileSink(path string) (*FileSink, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve log path %q: %w", path, err)
	}

	openFilesMu.Lock()
	defer openFilesMu.Unlock()

	if sf, ok := openFiles[abs]; ok {
		sf.refs++
		return &FileSink{file: sf}, nil
	}

	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %q: %w", abs, err)
	}

	sf := &sharedFile{f: f, path: abs, refs: 1}
	openFiles[abs] = sf
	return &FileSink{file: sf}, nil
}

// Path returns the absolute path of the log file.
func (s *FileSink) Path() string {
	return s.file.path
}

// Append writes r as a single line.
func (s *FileSink) Append(_ context.Context, r Record) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", r.Kind(), err)
	}
	line = append(line, '\n')

	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	if s.file.f == nil {
		return fmt.Errorf("log file %q is closed", s.file.path)
	}
	_, err = s.file.f.Write(line)
	return err
}

// Close releases the sink. The file is closed when its last sink is.
func (s *FileSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		openFilesMu.Lock()
		defer openFilesMu.Unlock()

		s.file.refs--
		if s.file.refs > 0 {
			return
		}
		delete(openFiles, s.file.path)

		s.file.mu.Lock()
		defer s.file.mu.Unlock()
		err = s.file.f.Close()
		s.file.f = nil
	})
	return err
}

// ============================================================================
// Memory sink
// ============================================================================

// MemorySink keeps records in memory. It is meant for tests and for callers
// that inspect the logs of a short-lived process.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Records returns a copy of the appended records in order.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.records)
}

// Len returns the number of records appended so far.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ============================================================================
// Logger sink
// ============================================================================

// LoggerSink forwards records to the operational logger at DEBUG.
type LoggerSink struct{}

// Append writes r as one JSON line. Encoding is skipped when DEBUG is off.
func (LoggerSink) Append(_ context.Context, r Record) error {
	if !logger.Enabled(logger.LevelDebug) {
		return nil
	}
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", r.Kind(), err)
	}
	logger.Debug("[%s] %s", r.Kind(), line)
	return nil
}

func (LoggerSink) Close() error { return nil }

// ============================================================================
// Sink sets
// ============================================================================

// LogPaths locates the three command logs. An empty path selects LoggerSink.
type LogPaths struct {
	Access      string
	Performance string
	Error       string
}

// Sinks groups the access, performance and error sinks of a gateway.
type Sinks struct {
	Access      Sink
	Performance Sink
	Error       Sink
}

// OpenSinks opens one sink per configured path.
func OpenSinks(paths LogPaths) (Sinks, error) {
	var sinks Sinks

	open := func(path string) (Sink, error) {
		if path == "" {
			return LoggerSink{}, nil
		}
		return OpenFileSink(path)
	}

	var err error
	if sinks.Access, err = open(paths.Access); err != nil {
		return Sinks{}, err
	}
	if sinks.Performance, err = open(paths.Performance); err != nil {
		_ = sinks.Close()
		return Sinks{}, err
	}
	if sinks.Error, err = open(paths.Error); err != nil {
		_ = sinks.Close()
		return Sinks{}, err
	}
	return sinks, nil
}

// Close closes every non-nil sink and joins their errors.
func (s Sinks) Close() error {
	var errs []error
	for _, sink := range []Sink{s.Access, s.Performance, s.Error} {
		if sink == nil {
			continue
		}
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s Sinks) withDefaults() Sinks {
	if s.Access == nil {
		s.Access = LoggerSink{}
	}
	if s.Performance == nil {
		s.Performance = LoggerSink{}
	}
	if s.Error == nil {
		s.Error = LoggerSink{}
	}
	return s
}
