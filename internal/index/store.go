package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Store provides doc-index operations on top of a Storage. Every file
// record owns one name index entry per binding; both are replaced together.
type Store struct {
	storage Storage
}

// NewStore creates a store and records the schema version on first use
func NewStore(ctx context.Context, storage Storage) (*Store, error) {
	s := &Store{storage: storage}

	version, err := storage.Get(ctx, []byte(KeyVersion))
	switch {
	case errors.Is(err, ErrKeyNotFound):
		if err := storage.Set(ctx, []byte(KeyVersion), []byte(SchemaVersion)); err != nil {
			return nil, fmt.Errorf("failed to write schema version: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	case string(version) != SchemaVersion:
		return nil, fmt.Errorf("index schema %s, want %s: %w", version, SchemaVersion, ErrSchemaVersion)
	}
	return s, nil
}

// OpenStore opens the on-disk index at dir. An empty dir opens an
// in-memory index.
func OpenStore(ctx context.Context, dir string, opts BadgerOptions) (*Store, error) {
	opts.Dir = dir
	if dir == "" {
		opts.InMemory = true
	}
	storage, err := NewBadgerStorage(opts)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(ctx, storage)
	if err != nil {
		storage.Close()
		return nil, err
	}
	return store, nil
}

// PutFile stores a file record, replacing any previous record for the same path
func (s *Store) PutFile(ctx context.Context, record FileRecord) error {
	data, err := MarshalValue(record)
	if err != nil {
		return fmt.Errorf("failed to marshal file record: %w", err)
	}

	return s.storage.Transaction(ctx, func(txn Txn) error {
		if err := deleteNames(txn, record.Path); err != nil {
			return err
		}
		if err := txn.Set(FileKey(record.Path), data); err != nil {
			return err
		}
		for i, b := range record.Bindings {
			ref := NameRef{Name: b.Declaration.Name, Path: record.Path, Line: b.Declaration.Line, Index: i}
			refData, err := MarshalValue(ref)
			if err != nil {
				return err
			}
			if err := txn.Set(NameKey(ref.Name, ref.Path, ref.Line), refData); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFile retrieves the record for a path. It returns ErrKeyNotFound when
// the path is not indexed.
func (s *Store) GetFile(ctx context.Context, path string) (*FileRecord, error) {
	data, err := s.storage.Get(ctx, FileKey(path))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, &StorageError{Op: ErrKeyNotFound.Op, Key: path, Err: ErrKeyNotFound.Err}
		}
		return nil, err
	}

	var record FileRecord
	if err := UnmarshalValue(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal file record: %w", err)
	}
	return &record, nil
}

// DeleteFile removes a file record and its name index entries
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	return s.storage.Transaction(ctx, func(txn Txn) error {
		if err := deleteNames(txn, path); err != nil {
			return err
		}
		return txn.Delete(FileKey(path))
	})
}

// deleteNames removes the name index entries of the stored record for path
func deleteNames(txn Txn, path string) error {
	data, err := txn.Get(FileKey(path))
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var old FileRecord
	if err := UnmarshalValue(data, &old); err != nil {
		return fmt.Errorf("failed to unmarshal file record: %w", err)
	}
	for _, b := range old.Bindings {
		if err := txn.Delete(NameKey(b.Declaration.Name, path, b.Declaration.Line)); err != nil {
			return err
		}
	}
	return nil
}

// Files returns every indexed record sorted by path
func (s *Store) Files(ctx context.Context) ([]FileRecord, error) {
	var records []FileRecord
	err := s.EachFile(ctx, func(r FileRecord) error {
		records = append(records, r)
		return nil
	})
	return records, err
}

// EachFile calls fn for every indexed record in path order. Corrupted
// records are skipped.
func (s *Store) EachFile(ctx context.Context, fn func(FileRecord) error) error {
	iter := s.storage.Scan(ctx, []byte(PrefixFile), ScanOptions{})
	defer iter.Close()

	for iter.Next() {
		var record FileRecord
		if err := UnmarshalValue(iter.Value(), &record); err != nil {
			continue
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Paths returns the indexed paths in order without decoding the records
func (s *Store) Paths(ctx context.Context) ([]string, error) {
	iter := s.storage.Scan(ctx, []byte(PrefixFile), ScanOptions{KeysOnly: true})
	defer iter.Close()

	var paths []string
	for iter.Next() {
		paths = append(paths, strings.TrimPrefix(string(iter.Key()), PrefixFile))
	}
	return paths, iter.Error()
}

// LookupName returns the bindings declared with name, matched
// case-insensitively
func (s *Store) LookupName(ctx context.Context, name string) ([]NameRef, error) {
	return s.scanNames(ctx, NamePrefix(name), nil)
}

// MatchNames returns the name index entries whose declaration name
// satisfies match. Names are passed as written in the source.
func (s *Store) MatchNames(ctx context.Context, match func(name string) bool) ([]NameRef, error) {
	return s.scanNames(ctx, []byte(PrefixName), match)
}

func (s *Store) scanNames(ctx context.Context, prefix []byte, match func(string) bool) ([]NameRef, error) {
	iter := s.storage.Scan(ctx, prefix, ScanOptions{})
	defer iter.Close()

	var refs []NameRef
	for iter.Next() {
		var ref NameRef
		if err := UnmarshalValue(iter.Value(), &ref); err != nil {
			continue
		}
		if match != nil && !match(ref.Name) {
			continue
		}
		refs = append(refs, ref)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Path != refs[j].Path {
			return refs[i].Path < refs[j].Path
		}
		return refs[i].Line < refs[j].Line
	})
	return refs, nil
}

// PutBuild records the most recent build
func (s *Store) PutBuild(ctx context.Context, info BuildInfo) error {
	data, err := MarshalValue(info)
	if err != nil {
		return fmt.Errorf("failed to marshal build info: %w", err)
	}
	return s.storage.Set(ctx, BuildKey(), data)
}

// LastBuild returns the most recent build, or nil when the index was never built
func (s *Store) LastBuild(ctx context.Context) (*BuildInfo, error) {
	data, err := s.storage.Get(ctx, BuildKey())
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var info BuildInfo
	if err := UnmarshalValue(data, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal build info: %w", err)
	}
	return &info, nil
}

// Clear removes every record, keeping the schema version
func (s *Store) Clear(ctx context.Context) error {
	if err := s.storage.DropAll(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	return s.storage.Set(ctx, []byte(KeyVersion), []byte(SchemaVersion))
}

// IndexStats summarizes the contents of the index
type IndexStats struct {
	Files        int            `json:"files" yaml:"files"`
	Failed       int            `json:"failed" yaml:"failed"`
	Declarations int            `json:"declarations" yaml:"declarations"`
	Documented   int            `json:"documented" yaml:"documented"`
	Warnings     int            `json:"warnings" yaml:"warnings"`
	Languages    map[string]int `json:"languages" yaml:"languages"`
	LastBuild    *BuildInfo     `json:"last_build,omitempty" yaml:"last_build,omitempty"`
	Storage      StorageStats   `json:"storage" yaml:"storage"`
}

// Coverage is the fraction of indexed declarations that are documented
func (st IndexStats) Coverage() float64 {
	if st.Declarations == 0 {
		return 0
	}
	return float64(st.Documented) / float64(st.Declarations)
}

// Stats scans the index and summarizes its contents
func (s *Store) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{Languages: make(map[string]int)}

	err := s.EachFile(ctx, func(r FileRecord) error {
		stats.Files++
		if r.Error != "" {
			stats.Failed++
			return nil
		}
		stats.Languages[r.Language]++
		stats.Warnings += len(r.Warnings)
		for _, b := range r.Bindings {
			stats.Declarations++
			if b.Documented() {
				stats.Documented++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stats.LastBuild, err = s.LastBuild(ctx); err != nil {
		return nil, err
	}
	stats.Storage = s.storage.Stats()
	return stats, nil
}

// Storage returns the underlying storage interface
func (s *Store) Storage() Storage {
	return s.storage
}

// Close closes the underlying storage
func (s *Store) Close() error {
	return s.storage.Close()
}
