package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/73ai/docextract/internal/collect"
	"github.com/73ai/docextract/internal/parser"
)

// Storage defines the key-value operations the doc index is built on.
// It provides prefix scanning, transactions and batch writes.
type Storage interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Has(ctx context.Context, key []byte) (bool, error)

	Batch() Batch
	WriteBatch(ctx context.Context, batch Batch) error

	Scan(ctx context.Context, prefix []byte, opts ScanOptions) Iterator

	Transaction(ctx context.Context, fn func(Txn) error) error

	Backup(ctx context.Context, w io.Writer) error
	Restore(ctx context.Context, r io.Reader) error
	DropAll(ctx context.Context) error
	Close() error

	Stats() StorageStats
	Size() (int64, error)

	GC(ctx context.Context) error
}

// Batch represents a collection of operations to be executed atomically
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
	Clear()
	Size() int
}

// Txn represents a transaction for atomic multi-operation updates
type Txn interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	Scan(prefix []byte, opts ScanOptions) Iterator
}

// Iterator provides sequential access to the key-value pairs under a prefix
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close()
}

// ScanOptions controls prefix scanning behavior
type ScanOptions struct {
	Reverse bool

	// Limit stops the scan after this many keys; zero means no limit
	Limit int

	KeysOnly bool

	StartAfter []byte
}

// StorageStats provides insights into storage usage
type StorageStats struct {
	TotalSize int64 `json:"total_size" yaml:"total_size"`
	IndexSize int64 `json:"index_size" yaml:"index_size"`

	ReadCount  int64 `json:"read_count" yaml:"read_count"`
	WriteCount int64 `json:"write_count" yaml:"write_count"`
	ScanCount  int64 `json:"scan_count" yaml:"scan_count"`

	CacheHits   int64 `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses int64 `json:"cache_misses" yaml:"cache_misses"`

	AvgReadTime  int64 `json:"avg_read_time" yaml:"avg_read_time"`
	AvgWriteTime int64 `json:"avg_write_time" yaml:"avg_write_time"`
	AvgScanTime  int64 `json:"avg_scan_time" yaml:"avg_scan_time"`

	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
}

const (
	PrefixFile  = "file:"  // file:{path} -> FileRecord
	PrefixName  = "name:"  // name:{lower name}:{path}:{line} -> NameRef
	PrefixBuild = "build:" // build:last -> BuildInfo

	KeyVersion = "version" // version -> schema version

	SchemaVersion = "1"
)

// FileRecord is the indexed extraction report of one file
type FileRecord struct {
	Path      string              `json:"path" yaml:"path"`
	Language  string              `json:"language" yaml:"language"`
	Hash      string              `json:"hash" yaml:"hash"`
	Size      int64               `json:"size" yaml:"size"`
	ModTime   time.Time           `json:"mod_time" yaml:"mod_time"`
	FileDoc   *parser.FileDoc     `json:"file_doc,omitempty" yaml:"file_doc,omitempty"`
	Bindings  []parser.DocBinding `json:"bindings" yaml:"bindings"`
	Warnings  []parser.Warning    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error     string              `json:"error,omitempty" yaml:"error,omitempty"`
	IndexedAt time.Time           `json:"indexed_at" yaml:"indexed_at"`
	RunID     string              `json:"run_id" yaml:"run_id"`
}

// NewFileRecord converts an extraction report into an index record
func NewFileRecord(f collect.File, runID string) FileRecord {
	return FileRecord{
		Path:      f.Path,
		Language:  f.Language,
		Hash:      f.Hash,
		Size:      f.Size,
		ModTime:   f.ModTime,
		FileDoc:   f.FileDoc,
		Bindings:  f.Bindings,
		Warnings:  f.Warnings,
		Error:     f.Error,
		IndexedAt: time.Now(),
		RunID:     runID,
	}
}

// File converts the record back into an extraction report
func (r FileRecord) File() collect.File {
	return collect.File{
		Path:     r.Path,
		Language: r.Language,
		FileDoc:  r.FileDoc,
		Bindings: r.Bindings,
		Warnings: r.Warnings,
		Error:    r.Error,
		Hash:     r.Hash,
		Size:     r.Size,
		ModTime:  r.ModTime,
	}
}

// NameRef points from the name index to one binding of a file record
type NameRef struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	Line  int    `json:"line"`
	Index int    `json:"index"`
}

// BuildInfo describes the most recent index build
type BuildInfo struct {
	RunID        string    `json:"run_id" yaml:"run_id"`
	Mode         string    `json:"mode" yaml:"mode"`
	Roots        []string  `json:"roots" yaml:"roots"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`
	Files        int64     `json:"files" yaml:"files"`
	Extracted    int64     `json:"extracted" yaml:"extracted"`
	Skipped      int64     `json:"skipped" yaml:"skipped"`
	Removed      int64     `json:"removed" yaml:"removed"`
	Failed       int64     `json:"failed" yaml:"failed"`
	Declarations int64     `json:"declarations" yaml:"declarations"`
	Documented   int64     `json:"documented" yaml:"documented"`
}

func FileKey(path string) []byte {
	return []byte(PrefixFile + path)
}

// NameKey returns the name index key of one declaration
func NameKey(name, path string, line int) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%d", PrefixName, strings.ToLower(name), path, line))
}

// NamePrefix returns the prefix of every name index key for a name
func NamePrefix(name string) []byte {
	return []byte(PrefixName + strings.ToLower(name) + ":")
}

func BuildKey() []byte {
	return []byte(PrefixBuild + "last")
}

func MarshalValue(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func UnmarshalValue(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// StorageError wraps storage-specific errors
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return "storage " + e.Op + ": " + e.Err.Error()
	}
	return "storage " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is matches storage errors by operation and cause so that a keyed
// error still satisfies errors.Is against the sentinels below
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return t.Op == e.Op && t.Err == e.Err
}

var (
	ErrKeyNotFound   = &StorageError{Op: "get", Err: io.EOF}
	ErrInvalidBatch  = &StorageError{Op: "batch", Err: io.ErrShortBuffer}
	ErrSchemaVersion = &StorageError{Op: "open", Err: io.ErrUnexpectedEOF}
)
