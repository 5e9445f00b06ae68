package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStorage(t testing.TB) *BadgerStorage {
	t.Helper()
	opts := DefaultBadgerOptions("")
	opts.InMemory = true

	storage, err := NewBadgerStorage(opts)
	require.NoError(t, err, "Failed to create storage")
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestStorageInterface(t *testing.T) {
	storage := newMemoryStorage(t)
	ctx := context.Background()

	t.Run("Basic Operations", func(t *testing.T) {
		testBasicOperations(t, storage, ctx)
	})

	t.Run("Batch Operations", func(t *testing.T) {
		testBatchOperations(t, storage, ctx)
	})

	t.Run("Scanning", func(t *testing.T) {
		testScanning(t, storage, ctx)
	})

	t.Run("Transactions", func(t *testing.T) {
		testTransactions(t, storage, ctx)
	})
}

func newDiskStorage(t testing.TB) *BadgerStorage {
	t.Helper()
	opts := DefaultBadgerOptions(t.TempDir())
	opts.GCInterval = 0

	storage, err := NewBadgerStorage(opts)
	require.NoError(t, err, "Failed to create storage")
	t.Cleanup(func() { storage.Close() })
	return storage
}

func testBasicOperations(t *testing.T, storage Storage, ctx context.Context) {
	key := []byte("test-key")
	value := []byte("test-value")

	exists, err := storage.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists, "key should not exist")

	_, err = storage.Get(ctx, key)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, storage.Set(ctx, key, value))

	exists, err = storage.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists, "key should exist")

	retrieved, err := storage.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, retrieved)

	require.NoError(t, storage.Delete(ctx, key))

	exists, err = storage.Has(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists, "key should not exist after delete")
}

func testBatchOperations(t *testing.T, storage Storage, ctx context.Context) {
	batch := storage.Batch()

	for i := 0; i < 10; i++ {
		batch.Set([]byte(fmt.Sprintf("batch-key-%d", i)), []byte(fmt.Sprintf("batch-value-%d", i)))
	}

	assert.Equal(t, 10, batch.Size())
	require.NoError(t, storage.WriteBatch(ctx, batch))

	for i := 0; i < 10; i++ {
		value, err := storage.Get(ctx, []byte(fmt.Sprintf("batch-key-%d", i)))
		require.NoError(t, err, "batch item %d", i)
		assert.Equal(t, fmt.Sprintf("batch-value-%d", i), string(value))
	}

	other := storage.Batch()
	other.Set([]byte("discarded"), []byte("x"))
	other.Clear()
	assert.Zero(t, other.Size(), "batch should be empty after clear")
}

func testScanning(t *testing.T, storage Storage, ctx context.Context) {
	prefix := "scan-test:"
	testData := map[string]string{
		prefix + "a": "value-a",
		prefix + "b": "value-b",
		prefix + "c": "value-c",
		"scan-test;": "neighbour",
		"other":      "other-value",
	}

	for key, value := range testData {
		require.NoError(t, storage.Set(ctx, []byte(key), []byte(value)), key)
	}

	scan := func(opts ScanOptions) []string {
		iter := storage.Scan(ctx, []byte(prefix), opts)
		defer iter.Close()

		var keys []string
		for iter.Next() {
			keys = append(keys, string(iter.Key()))
			if !opts.KeysOnly {
				assert.Equal(t, testData[string(iter.Key())], string(iter.Value()))
			}
		}
		assert.NoError(t, iter.Error())
		return keys
	}

	tests := []struct {
		name string
		opts ScanOptions
		want []string
	}{
		{"prefix only", ScanOptions{}, []string{prefix + "a", prefix + "b", prefix + "c"}},
		{"keys only", ScanOptions{KeysOnly: true}, []string{prefix + "a", prefix + "b", prefix + "c"}},
		{"limit", ScanOptions{Limit: 2}, []string{prefix + "a", prefix + "b"}},
		{"reverse", ScanOptions{Reverse: true}, []string{prefix + "c", prefix + "b", prefix + "a"}},
		{"start after", ScanOptions{StartAfter: []byte(prefix + "a")}, []string{prefix + "b", prefix + "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scan(tt.opts))
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	iter := storage.Scan(cancelled, []byte(prefix), ScanOptions{})
	defer iter.Close()
	assert.False(t, iter.Next(), "scan with a cancelled context should yield nothing")
	assert.ErrorIs(t, iter.Error(), context.Canceled)
}

func testTransactions(t *testing.T, storage Storage, ctx context.Context) {
	key1 := []byte("txn-key-1")
	key2 := []byte("txn-key-2")
	value1 := []byte("txn-value-1")
	value2 := []byte("txn-value-2")

	err := storage.Transaction(ctx, func(txn Txn) error {
		if err := txn.Set(key1, value1); err != nil {
			return err
		}
		return txn.Set(key2, value2)
	})
	require.NoError(t, err)

	val1, err := storage.Get(ctx, key1)
	require.NoError(t, err)
	assert.Equal(t, value1, val1)
	val2, err := storage.Get(ctx, key2)
	require.NoError(t, err)
	assert.Equal(t, value2, val2)

	// a failed transaction leaves nothing behind
	failure := errors.New("abort")
	err = storage.Transaction(ctx, func(txn Txn) error {
		if err := txn.Set([]byte("txn-key-3"), []byte("never")); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)
	exists, _ := storage.Has(ctx, []byte("txn-key-3"))
	assert.False(t, exists, "aborted transaction should not be committed")

	err = storage.Transaction(ctx, func(txn Txn) error {
		_, err := txn.Get([]byte("txn-missing"))
		assert.ErrorIs(t, err, ErrKeyNotFound)

		iter := txn.Scan([]byte("txn-key-"), ScanOptions{})
		defer iter.Close()
		count := 0
		for iter.Next() {
			count++
		}
		assert.Equal(t, 2, count)
		return nil
	})
	assert.NoError(t, err)
}

func TestBackupRestore(t *testing.T) {
	ctx := context.Background()
	storage := newDiskStorage(t)

	require.NoError(t, storage.Set(ctx, []byte("backup-key"), []byte("backup-value")))

	var buf bytes.Buffer
	require.NoError(t, storage.Backup(ctx, &buf))

	restored := newDiskStorage(t)
	require.NoError(t, restored.Restore(ctx, &buf))

	value, err := restored.Get(ctx, []byte("backup-key"))
	require.NoError(t, err)
	assert.Equal(t, "backup-value", string(value))
}

func TestStorageError(t *testing.T) {
	err := &StorageError{Op: ErrKeyNotFound.Op, Key: "/src/a.go", Err: ErrKeyNotFound.Err}

	assert.ErrorIs(t, err, ErrKeyNotFound, "keyed not-found error should match ErrKeyNotFound")
	assert.NotErrorIs(t, err, ErrInvalidBatch)
	assert.EqualError(t, err, "storage get /src/a.go: EOF")
}
