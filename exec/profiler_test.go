package exec

import (
	"strings"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gomlx/execgraph/types/objects"
)

func TestProfilerAggregation(t *testing.T) {
	profiler := GetProfiler()
	profiler.ClearStats()
	profiler.Start()
	defer func() {
		profiler.Stop()
		profiler.ClearStats()
	}()

	graph := addInPlaceGraph(t)
	interpreter := must.M1(NewInterpreter(graph, []MemLocation{Loc(4, objects.CPU)}, 1))
	defer interpreter.Finalize()

	const numRuns = 3
	for range numRuns {
		args := addInPlaceArgs([]float32{1, 2}, []float32{3, 4})
		result := must.M1(interpreter.Run(args))
		result.Release()
		args.Release()
	}
	profiler.Stop()

	stats := profiler.InstrStats()
	require.Len(t, stats, graph.NumInstructions())
	var timeSum float64
	for _, entry := range stats {
		assert.Equal(t, numRuns, entry.Count, "instruction %q", entry.Repr)
		assert.GreaterOrEqual(t, entry.TimeTotal, 0.0)
		timeSum += entry.TimeTotal
	}
	assert.InDelta(t, profiler.TTotal(), timeSum, 1e-9)

	// Sorted by total time, descending.
	for i := 1; i < len(stats); i++ {
		assert.GreaterOrEqual(t, stats[i-1].TimeTotal, stats[i].TimeTotal)
	}
}

func TestProfilerOffByDefault(t *testing.T) {
	profiler := GetProfiler()
	profiler.ClearStats()
	require.False(t, profiler.IsOn())

	graph := addInPlaceGraph(t)
	interpreter := must.M1(NewInterpreter(graph, []MemLocation{Loc(4, objects.CPU)}, 1))
	defer interpreter.Finalize()

	args := addInPlaceArgs([]float32{1}, []float32{2})
	defer args.Release()
	result := must.M1(interpreter.Run(args))
	result.Release()

	assert.Empty(t, profiler.InstrStats())
	assert.Zero(t, profiler.TTotal())
}

func TestProfilerClearStats(t *testing.T) {
	profiler := GetProfiler()
	profiler.ClearStats()

	instr := NewLoadArgument("load-x", 1, 0, Loc(0, objects.CPU))
	profiler.Update(instr, 0.5)
	profiler.Update(instr, 0.25)

	stats := profiler.InstrStats()
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 0.75, stats[0].TimeTotal, 1e-12)
	assert.InDelta(t, 0.75, profiler.TTotal(), 1e-12)
	assert.Equal(t, "load-x", stats[0].Repr)
	assert.Equal(t, int64(1), stats[0].SourceHash)

	profiler.ClearStats()
	assert.Empty(t, profiler.InstrStats())
	assert.Zero(t, profiler.TTotal())
}

func TestProfilerWriteStats(t *testing.T) {
	profiler := GetProfiler()
	profiler.ClearStats()
	defer profiler.ClearStats()

	slow := NewReturnByVal("matmul", 1, nil, Loc(0, objects.CPU), ByValCallable{}, false)
	fast := NewLoadArgument("load-x", 2, 0, Loc(1, objects.CPU))
	profiler.Update(slow, 1.5)
	profiler.Update(fast, 0.001)

	var b strings.Builder
	profiler.WriteStats(&b)
	output := b.String()
	assert.Contains(t, output, "matmul")
	assert.Contains(t, output, "load-x")
	assert.Contains(t, output, "Total:")
	// Slowest first.
	assert.Less(t, strings.Index(output, "matmul"), strings.Index(output, "load-x"))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "1.50s", formatSeconds(1.5))
	assert.Equal(t, "1.50ms", formatSeconds(0.0015))
	assert.Equal(t, "0.00s", formatSeconds(0))
}
