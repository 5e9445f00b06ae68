package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// BadgerStorage implements the Storage interface using BadgerDB
type BadgerStorage struct {
	db     *badger.DB
	opts   BadgerOptions
	stats  *badgerStats
	mutex  sync.RWMutex
	stopGC chan struct{}
	closed sync.Once
}

// BadgerOptions configures the BadgerDB instance
type BadgerOptions struct {
	// Directory to store the database files
	Dir string

	// InMemory creates an in-memory database (for testing)
	InMemory bool

	// ReadOnly opens database in read-only mode
	ReadOnly bool

	// ValueLogFileSize sets the maximum size of value log files
	ValueLogFileSize int64

	NumMemtables            int
	NumLevelZeroTables      int
	NumLevelZeroTablesStall int

	// SyncWrites enables synchronous writes
	SyncWrites bool

	CompactL0OnClose bool

	// Cache sizes in MB (0 = no cache)
	BlockCacheSize int64
	IndexCacheSize int64

	// GCInterval is the period of value log garbage collection; zero disables it
	GCInterval time.Duration

	// Logger receives badger's internal log lines; nil silences them
	Logger *slog.Logger
}

// DefaultBadgerOptions returns options sized for a doc index, which is
// small compared to a code index and written in bursts
func DefaultBadgerOptions(dir string) BadgerOptions {
	return BadgerOptions{
		Dir:                     dir,
		ValueLogFileSize:        256 << 20,
		NumMemtables:            3,
		NumLevelZeroTables:      5,
		NumLevelZeroTablesStall: 15,
		SyncWrites:              false,
		CompactL0OnClose:        true,
		BlockCacheSize:          64,
		IndexCacheSize:          16,
		GCInterval:              5 * time.Minute,
	}
}

type badgerStats struct {
	readCount   int64
	writeCount  int64
	scanCount   int64
	deleteCount int64

	cacheHits   int64
	cacheMisses int64

	// nanoseconds
	totalReadTime  int64
	totalWriteTime int64
	totalScanTime  int64

	lastUpdated time.Time
}

// NewBadgerStorage creates a new BadgerDB-backed storage instance
func NewBadgerStorage(opts BadgerOptions) (*BadgerStorage, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithNumLevelZeroTables(opts.NumLevelZeroTables).
		WithNumLevelZeroTablesStall(opts.NumLevelZeroTablesStall).
		WithSyncWrites(opts.SyncWrites).
		WithCompactL0OnClose(opts.CompactL0OnClose)

	if opts.ValueLogFileSize > 0 {
		badgerOpts = badgerOpts.WithValueLogFileSize(opts.ValueLogFileSize)
	}
	if opts.NumMemtables > 0 {
		badgerOpts = badgerOpts.WithNumMemtables(opts.NumMemtables)
	}
	if opts.BlockCacheSize > 0 {
		badgerOpts = badgerOpts.WithBlockCacheSize(opts.BlockCacheSize << 20)
	}
	if opts.IndexCacheSize > 0 {
		badgerOpts = badgerOpts.WithIndexCacheSize(opts.IndexCacheSize << 20)
	}

	badgerOpts = badgerOpts.
		WithDetectConflicts(false).
		WithCompression(options.ZSTD)

	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.ReadOnly {
		badgerOpts = badgerOpts.WithReadOnly(true)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	storage := &BadgerStorage{
		db:   db,
		opts: opts,
		stats: &badgerStats{
			lastUpdated: time.Now(),
		},
		stopGC: make(chan struct{}),
	}

	if opts.GCInterval > 0 && !opts.InMemory && !opts.ReadOnly {
		go storage.runGC(opts.GCInterval)
	}

	return storage, nil
}

// runGC runs periodic value log garbage collection until Close
func (bs *BadgerStorage) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for bs.db.RunValueLogGC(0.5) == nil {
			}
		case <-bs.stopGC:
			return
		}
	}
}

// Get retrieves a value by key
func (bs *BadgerStorage) Get(ctx context.Context, key []byte) ([]byte, error) {
	start := time.Now()
	defer func() {
		atomic.AddInt64(&bs.stats.readCount, 1)
		atomic.AddInt64(&bs.stats.totalReadTime, time.Since(start).Nanoseconds())
	}()

	var result []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				atomic.AddInt64(&bs.stats.cacheMisses, 1)
				return ErrKeyNotFound
			}
			return err
		}

		atomic.AddInt64(&bs.stats.cacheHits, 1)
		result, err = item.ValueCopy(nil)
		return err
	})

	return result, err
}

// Set stores a key-value pair
func (bs *BadgerStorage) Set(ctx context.Context, key, value []byte) error {
	start := time.Now()
	defer func() {
		atomic.AddInt64(&bs.stats.writeCount, 1)
		atomic.AddInt64(&bs.stats.totalWriteTime, time.Since(start).Nanoseconds())
	}()

	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Delete removes a key
func (bs *BadgerStorage) Delete(ctx context.Context, key []byte) error {
	start := time.Now()
	defer func() {
		atomic.AddInt64(&bs.stats.deleteCount, 1)
		atomic.AddInt64(&bs.stats.totalWriteTime, time.Since(start).Nanoseconds())
	}()

	return bs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Has checks if a key exists
func (bs *BadgerStorage) Has(ctx context.Context, key []byte) (bool, error) {
	err := bs.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

// badgerBatch implements the Batch interface
type badgerBatch struct {
	wb    *badger.WriteBatch
	count int
	err   error
}

// Batch creates a new batch for bulk operations
func (bs *BadgerStorage) Batch() Batch {
	return &badgerBatch{
		wb: bs.db.NewWriteBatch(),
	}
}

func (bb *badgerBatch) Set(key, value []byte) {
	if err := bb.wb.Set(key, value); err != nil && bb.err == nil {
		bb.err = err
	}
	bb.count++
}

func (bb *badgerBatch) Delete(key []byte) {
	if err := bb.wb.Delete(key); err != nil && bb.err == nil {
		bb.err = err
	}
	bb.count++
}

func (bb *badgerBatch) Clear() {
	bb.wb.Cancel()
	bb.count = 0
}

func (bb *badgerBatch) Size() int {
	return bb.count
}

// WriteBatch flushes a batch created by Batch
func (bs *BadgerStorage) WriteBatch(ctx context.Context, batch Batch) error {
	bb, ok := batch.(*badgerBatch)
	if !ok {
		return ErrInvalidBatch
	}
	if bb.err != nil {
		bb.wb.Cancel()
		return fmt.Errorf("failed to stage batch: %w", bb.err)
	}

	start := time.Now()
	defer func() {
		atomic.AddInt64(&bs.stats.writeCount, int64(bb.count))
		atomic.AddInt64(&bs.stats.totalWriteTime, time.Since(start).Nanoseconds())
	}()

	return bb.wb.Flush()
}

// badgerIterator implements the Iterator interface over one prefix
type badgerIterator struct {
	iter   *badger.Iterator
	txn    *badger.Txn
	ctx    context.Context
	prefix []byte
	limit  int
	seen   int
	err    error
	closed bool
	first  bool
}

func (bi *badgerIterator) Next() bool {
	if bi.closed || bi.err != nil {
		return false
	}

	select {
	case <-bi.ctx.Done():
		bi.err = bi.ctx.Err()
		return false
	default:
	}

	if bi.limit > 0 && bi.seen >= bi.limit {
		return false
	}

	// the first call reports the item the iterator was positioned on
	if !bi.first {
		bi.first = true
	} else {
		bi.iter.Next()
	}
	if !bi.iter.ValidForPrefix(bi.prefix) {
		return false
	}
	bi.seen++
	return true
}

func (bi *badgerIterator) Key() []byte {
	if !bi.iter.Valid() {
		return nil
	}
	return bi.iter.Item().KeyCopy(nil)
}

func (bi *badgerIterator) Value() []byte {
	if !bi.iter.Valid() {
		return nil
	}

	value, err := bi.iter.Item().ValueCopy(nil)
	if err != nil {
		bi.err = err
	}
	return value
}

func (bi *badgerIterator) Error() error {
	return bi.err
}

func (bi *badgerIterator) Close() {
	if !bi.closed {
		bi.iter.Close()
		if bi.txn != nil {
			bi.txn.Discard()
			bi.txn = nil
		}
		bi.closed = true
	}
}

func newIterator(ctx context.Context, txn *badger.Txn, owned bool, prefix []byte, opts ScanOptions) *badgerIterator {
	badgerOpts := badger.DefaultIteratorOptions
	badgerOpts.Reverse = opts.Reverse
	badgerOpts.PrefetchValues = !opts.KeysOnly
	badgerOpts.Prefix = prefix

	iter := txn.NewIterator(badgerOpts)

	switch {
	case opts.StartAfter != nil:
		iter.Seek(opts.StartAfter)
		if iter.Valid() && bytes.Equal(iter.Item().Key(), opts.StartAfter) {
			iter.Next()
		}
	case opts.Reverse:
		// reverse iteration seeks to the last key under the prefix
		iter.Seek(append(append([]byte{}, prefix...), 0xFF))
	default:
		iter.Seek(prefix)
	}

	bi := &badgerIterator{
		iter:   iter,
		ctx:    ctx,
		prefix: prefix,
		limit:  opts.Limit,
	}
	if owned {
		bi.txn = txn
	}
	return bi
}

// Scan creates an iterator over the keys that start with prefix
func (bs *BadgerStorage) Scan(ctx context.Context, prefix []byte, opts ScanOptions) Iterator {
	start := time.Now()
	defer func() {
		atomic.AddInt64(&bs.stats.scanCount, 1)
		atomic.AddInt64(&bs.stats.totalScanTime, time.Since(start).Nanoseconds())
	}()

	// the iterator owns its read transaction
	txn := bs.db.NewTransaction(false)
	return newIterator(ctx, txn, true, prefix, opts)
}

// badgerTxn implements the Txn interface
type badgerTxn struct {
	txn *badger.Txn
	ctx context.Context
}

// Transaction executes a function within a read-write transaction
func (bs *BadgerStorage) Transaction(ctx context.Context, fn func(Txn) error) error {
	return bs.db.Update(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn, ctx: ctx})
	})
}

func (bt *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := bt.txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (bt *badgerTxn) Set(key, value []byte) error {
	return bt.txn.Set(key, value)
}

func (bt *badgerTxn) Delete(key []byte) error {
	return bt.txn.Delete(key)
}

func (bt *badgerTxn) Has(key []byte) (bool, error) {
	_, err := bt.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}

func (bt *badgerTxn) Scan(prefix []byte, opts ScanOptions) Iterator {
	return newIterator(bt.ctx, bt.txn, false, prefix, opts)
}

// Backup writes a full backup of the database
func (bs *BadgerStorage) Backup(ctx context.Context, w io.Writer) error {
	_, err := bs.db.Backup(w, 0)
	return err
}

// Restore loads a backup written by Backup
func (bs *BadgerStorage) Restore(ctx context.Context, r io.Reader) error {
	return bs.db.Load(r, 16)
}

// DropAll removes all data from the database
func (bs *BadgerStorage) DropAll(ctx context.Context) error {
	return bs.db.DropAll()
}

// Close stops garbage collection and closes the database
func (bs *BadgerStorage) Close() error {
	var err error
	bs.closed.Do(func() {
		close(bs.stopGC)
		err = bs.db.Close()
	})
	return err
}

// Stats returns storage statistics
func (bs *BadgerStorage) Stats() StorageStats {
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()

	lsm, vlog := bs.db.Size()

	readCount := atomic.LoadInt64(&bs.stats.readCount)
	writeCount := atomic.LoadInt64(&bs.stats.writeCount)
	scanCount := atomic.LoadInt64(&bs.stats.scanCount)

	totalReadTime := atomic.LoadInt64(&bs.stats.totalReadTime)
	totalWriteTime := atomic.LoadInt64(&bs.stats.totalWriteTime)
	totalScanTime := atomic.LoadInt64(&bs.stats.totalScanTime)

	var avgReadTime, avgWriteTime, avgScanTime int64
	if readCount > 0 {
		avgReadTime = totalReadTime / readCount
	}
	if writeCount > 0 {
		avgWriteTime = totalWriteTime / writeCount
	}
	if scanCount > 0 {
		avgScanTime = totalScanTime / scanCount
	}

	return StorageStats{
		TotalSize:    lsm + vlog,
		IndexSize:    lsm,
		ReadCount:    readCount,
		WriteCount:   writeCount,
		ScanCount:    scanCount,
		CacheHits:    atomic.LoadInt64(&bs.stats.cacheHits),
		CacheMisses:  atomic.LoadInt64(&bs.stats.cacheMisses),
		AvgReadTime:  avgReadTime,
		AvgWriteTime: avgWriteTime,
		AvgScanTime:  avgScanTime,
		LastUpdated:  bs.stats.lastUpdated,
	}
}

// Size returns the total on-disk size of the database
func (bs *BadgerStorage) Size() (int64, error) {
	lsm, vlog := bs.db.Size()
	return lsm + vlog, nil
}

// GC runs value log garbage collection until nothing is left to rewrite
func (bs *BadgerStorage) GC(ctx context.Context) error {
	if bs.opts.InMemory {
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := bs.db.RunValueLogGC(0.5)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				return nil
			}
			return err
		}
	}
}

// Path returns the directory path of the database
func (bs *BadgerStorage) Path() string {
	return bs.opts.Dir
}

// IsReadOnly returns true if the database is opened in read-only mode
func (bs *BadgerStorage) IsReadOnly() bool {
	return bs.opts.ReadOnly
}

// badgerLogger forwards badger's printf-style logging to slog
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(trimLog(format, args), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(trimLog(format, args), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(trimLog(format, args), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(trimLog(format, args), "component", "badger")
}

func trimLog(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
