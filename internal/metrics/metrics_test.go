package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/73ai/docextract/internal/parser"
)

func TestMetrics_ObserveResult(t *testing.T) {
	m := New()

	res, err := parser.Extract("/** Adds. */\nfunction add() {}\nfunction sub() {}\n/* open", "js")
	require.NoError(t, err)
	m.ObserveResult(res, 2*time.Millisecond)
	m.ObserveFailure("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesProcessed.WithLabelValues("javascript", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesProcessed.WithLabelValues("unknown", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.declarations.WithLabelValues("javascript", "function")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.documented.WithLabelValues("javascript", "function")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.warnings.WithLabelValues("javascript", "unterminated_comment")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.extractDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveResult(&parser.Result{Language: "go"}, time.Second)
		m.ObserveFailure("go")
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.ObserveFailure("python")

	path := filepath.Join(t.TempDir(), "docextract.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `docextract_files_processed_total{language="python",status="error"} 1`)
}
