package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akoshelev/metric-proto/internal/bench"
)

func TestBenchCommandAtomicMode(t *testing.T) {
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs([]string{"bench", "--mode", "atomic", "--tasks", "2", "--max-val", "10000"})

	err := RootCmd.Execute()
	require.NoError(t, err)
	require.Contains(t, out.String(), "throughput")
}

func TestBenchCommandRejectsUnknownMode(t *testing.T) {
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs([]string{"bench", "--mode", "warp", "--tasks", "1", "--max-val", "10"})

	err := RootCmd.Execute()
	require.ErrorIs(t, err, bench.ErrUnknownMode)
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &bench.Report{
		RunID:      "r-1",
		Mode:       bench.ModePipeline,
		Tasks:      4,
		Elapsed:    123 * time.Millisecond,
		Final:      1000,
		Throughput: 8130.1,
		Dropped:    2,
		Latency: bench.LatencySummary{
			P50:     250 * time.Nanosecond,
			P99:     2 * time.Microsecond,
			Samples: 10,
		},
	})

	s := out.String()
	require.Contains(t, s, "r-1")
	require.Contains(t, s, "8130 ops/s")
	require.Contains(t, s, "2 snapshots")
}
