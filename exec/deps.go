package exec

// instructionDeps is the dependency DAG of a program, computed once at
// parallel-interpreter creation: one node per instruction, an edge i->j for
// every cell-level conflict between an earlier instruction i and a later
// instruction j.
//
// Edges cover the three conflict classes over the linear program:
//   - flow: i writes a slot j reads;
//   - output: i and j write the same slot;
//   - anti: i reads a slot j writes.
//
// Any topological order of this DAG leaves every slot with the same final
// occupant as the program order, which is what makes parallel execution
// observably equal to sequential.
type instructionDeps struct {
	// dependents[i] lists the instructions with an in-edge from i.
	dependents [][]int

	// numDeps[j] is the number of in-edges of j.
	numDeps []int
}

// computeDeps builds the DAG for graph's program.
func computeDeps(graph *ExecutionGraph) *instructionDeps {
	instructions := graph.Instructions()
	n := len(instructions)
	deps := &instructionDeps{
		dependents: make([][]int, n),
		numDeps:    make([]int, n),
	}

	// Per-slot history while sweeping the program: the last writer, and the
	// readers since that write.
	lastWriter := make([]int, graph.NumLocs())
	for i := range lastWriter {
		lastWriter[i] = -1
	}
	readersSinceWrite := make([][]int, graph.NumLocs())

	predecessors := make(map[int]struct{}, 8)
	for j, instr := range instructions {
		clear(predecessors)

		// Flow: last writer of each read slot.
		for _, loc := range instr.ReadLocs() {
			if w := lastWriter[loc.Index]; w >= 0 {
				predecessors[w] = struct{}{}
			}
		}
		writeIdx := instr.WriteLoc().Index
		// Output: last writer of the write slot. ReturnByRef also consumes
		// its write slot's occupant, so this doubles as its flow edge to
		// the producing Alloc.
		if w := lastWriter[writeIdx]; w >= 0 {
			predecessors[w] = struct{}{}
		}
		// Anti: readers of the write slot since its last write.
		for _, r := range readersSinceWrite[writeIdx] {
			predecessors[r] = struct{}{}
		}

		for p := range predecessors {
			deps.dependents[p] = append(deps.dependents[p], j)
		}
		deps.numDeps[j] = len(predecessors)

		// Advance the per-slot history.
		for _, loc := range instr.ReadLocs() {
			readersSinceWrite[loc.Index] = append(readersSinceWrite[loc.Index], j)
		}
		lastWriter[writeIdx] = j
		readersSinceWrite[writeIdx] = readersSinceWrite[writeIdx][:0]
	}
	return deps
}
