package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallybooks/tally/internal/verify"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVerify(reg)

	r := verify.Report{Warnings: []verify.Warning{
		{Kind: verify.KindOrphanSplit, Repaired: true},
		{Kind: verify.KindOrphanSplit, Repaired: true},
		{Kind: verify.KindUnbalanced},
	}}
	finished := time.Unix(1700000000, 0)
	m.Observe(r, finished, 1500*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Findings.WithLabelValues(string(verify.KindOrphanSplit))))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Repairs.WithLabelValues(string(verify.KindOrphanSplit))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Findings.WithLabelValues(string(verify.KindUnbalanced))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Repairs.WithLabelValues(string(verify.KindUnbalanced))))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Findings.WithLabelValues(string(verify.KindDuplicateSymbol))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Outstanding))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastRun))
	assert.InDelta(t, 1.5, testutil.ToFloat64(m.Duration), 1e-9)

	assert.Equal(t, len(verify.Kinds()), testutil.CollectAndCount(m.Findings))
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewVerify(reg)
	m.Observe(verify.Report{}, time.Unix(10, 0), time.Second)

	path := filepath.Join(t.TempDir(), "tally.prom")
	require.NoError(t, WriteTextfile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "tally_verify_outstanding 0")
	assert.Contains(t, string(data), `tally_verify_findings{kind="orphan-split"} 0`)

	assert.Error(t, WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom"), reg))
}
