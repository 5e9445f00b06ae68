package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/73ai/docextract/internal/parser"
)

func benchmarkRecord(i int) FileRecord {
	bindings := make([]parser.DocBinding, 20)
	for j := range bindings {
		bindings[j] = binding(fmt.Sprintf("Func%d_%d", i, j), parser.KindFunction, j*5+2, "Does a thing.")
	}
	return FileRecord{
		Path:     fmt.Sprintf("/src/pkg%d/file%d.go", i%10, i),
		Language: "go",
		Hash:     fmt.Sprintf("%064d", i),
		Bindings: bindings,
	}
}

func BenchmarkStore(b *testing.B) {
	ctx := context.Background()

	b.Run("PutFile", func(b *testing.B) {
		store := newTestStore(b)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			require.NoError(b, store.PutFile(ctx, benchmarkRecord(i%1000)))
		}
	})

	b.Run("GetFile", func(b *testing.B) {
		store := newTestStore(b)
		for i := 0; i < 1000; i++ {
			require.NoError(b, store.PutFile(ctx, benchmarkRecord(i)))
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := store.GetFile(ctx, benchmarkRecord(i%1000).Path)
			require.NoError(b, err)
		}
	})

	b.Run("LookupName", func(b *testing.B) {
		store := newTestStore(b)
		for i := 0; i < 1000; i++ {
			require.NoError(b, store.PutFile(ctx, benchmarkRecord(i)))
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := store.LookupName(ctx, fmt.Sprintf("func%d_3", i%1000))
			require.NoError(b, err)
		}
	})

	b.Run("Stats", func(b *testing.B) {
		store := newTestStore(b)
		for i := 0; i < 200; i++ {
			require.NoError(b, store.PutFile(ctx, benchmarkRecord(i)))
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := store.Stats(ctx)
			require.NoError(b, err)
		}
	})
}

func BenchmarkBuilder(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 100; i++ {
		writeSource(b, root, fmt.Sprintf("pkg%d/file%d.go", i%10, i),
			fmt.Sprintf("// F%d does a thing.\nfunc F%d() {}\n\ntype T%d struct {\n\t// Field doc.\n\tField int\n}\n", i, i, i))
	}
	ctx := context.Background()

	b.Run("Rebuild", func(b *testing.B) {
		store := newTestStore(b)
		builder := newTestBuilder(b, store)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := builder.RebuildIndex(ctx, root)
			require.NoError(b, err)
		}
	})

	b.Run("IncrementalNoChanges", func(b *testing.B) {
		store := newTestStore(b)
		builder := newTestBuilder(b, store)
		_, err := builder.BuildIndex(ctx, root)
		require.NoError(b, err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, err := builder.BuildIndex(ctx, root)
			require.NoError(b, err)
		}
	})
}
