package exec

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// InstructionStats aggregates the firings of one instruction: how many times
// it fired and the total elapsed seconds, along with the repr and source
// hash that identify it across runs.
type InstructionStats struct {
	Repr       string
	SourceHash int64
	Count      int
	TimeTotal  float64
}

// NativeProfiler aggregates per-instruction latency across every interpreter
// in the process. It is off by default; while off, interpreters skip timing
// entirely. Mutation is serialized behind a mutex, so profiling parallel
// runs adds contention -- expect it to perturb what it measures.
type NativeProfiler struct {
	on atomic.Bool

	mu     sync.Mutex
	tTotal float64
	stats  map[*Instruction]*InstructionStats
}

var nativeProfiler = &NativeProfiler{
	stats: make(map[*Instruction]*InstructionStats),
}

// GetProfiler returns the process-wide profiler singleton.
func GetProfiler() *NativeProfiler {
	return nativeProfiler
}

// Start enables profiling.
func (p *NativeProfiler) Start() {
	p.on.Store(true)
	klog.V(1).Info("exec: profiler started")
}

// Stop disables profiling. Accumulated stats are kept.
func (p *NativeProfiler) Stop() {
	p.on.Store(false)
	klog.V(1).Info("exec: profiler stopped")
}

// IsOn returns whether profiling is enabled.
func (p *NativeProfiler) IsOn() bool {
	return p.on.Load()
}

// Update records one firing of instr taking elapsed seconds.
func (p *NativeProfiler) Update(instr *Instruction, elapsed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, found := p.stats[instr]
	if !found {
		entry = &InstructionStats{Repr: instr.Repr(), SourceHash: instr.SourceHash()}
		p.stats[instr] = entry
	}
	entry.Count++
	entry.TimeTotal += elapsed
	p.tTotal += elapsed
}

// ClearStats drops every record and resets the running total.
func (p *NativeProfiler) ClearStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = make(map[*Instruction]*InstructionStats)
	p.tTotal = 0
}

// TTotal returns the running total of profiled seconds.
func (p *NativeProfiler) TTotal() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tTotal
}

// InstrStats snapshots the per-instruction records, sorted by total time
// descending.
func (p *NativeProfiler) InstrStats() []InstructionStats {
	p.mu.Lock()
	result := make([]InstructionStats, 0, len(p.stats))
	for _, entry := range p.stats {
		result = append(result, *entry)
	}
	p.mu.Unlock()
	sort.Slice(result, func(i, j int) bool {
		if result[i].TimeTotal != result[j].TimeTotal {
			return result[i].TimeTotal > result[j].TimeTotal
		}
		return result[i].Repr < result[j].Repr
	})
	return result
}

var (
	statsNormalStyle       = lipgloss.NewStyle().Padding(0, 1)
	statsRightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	statsTableBorderColor  = "#705090"
)

// WriteStats renders the stats table to w, sorted by total time descending.
func (p *NativeProfiler) WriteStats(w io.Writer) {
	stats := p.InstrStats()
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(statsTableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return statsNormalStyle
			}
			return statsRightAlignedStyle
		}).
		Headers("Instruction", "Count", "Total", "Mean")
	for _, entry := range stats {
		mean := 0.0
		if entry.Count > 0 {
			mean = entry.TimeTotal / float64(entry.Count)
		}
		table.Row(
			entry.Repr,
			humanize.Comma(int64(entry.Count)),
			formatSeconds(entry.TimeTotal),
			formatSeconds(mean),
		)
	}
	fmt.Fprintln(w, table.String())
	fmt.Fprintf(w, "Total: %s\n", formatSeconds(p.TTotal()))
}

// PrintStats emits the stats table to stdout.
func (p *NativeProfiler) PrintStats() {
	p.WriteStats(os.Stdout)
}

var durationRegexp = regexp.MustCompile(`^(\d+\.?\d*)([µa-z]+)$`)

// formatSeconds pretty prints a duration in seconds without a long list of
// decimal points. Durations with more than one unit (e.g. "1m30s") are
// printed as time.Duration formats them.
func formatSeconds(seconds float64) string {
	s := time.Duration(seconds * float64(time.Second)).String()
	matches := durationRegexp.FindStringSubmatch(s)
	if len(matches) != 3 {
		return s
	}
	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%.2f%s", num, matches[2])
}
