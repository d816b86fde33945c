package exec

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/gomlx/execgraph/types/objects"
)

// parallelInterpreter schedules the program over a fixed worker pool,
// respecting the dependency DAG computed at creation. Observable results --
// final slot contents, output tuple, per-instruction fire counts -- match
// the sequential interpreter's on the same inputs.
type parallelInterpreter struct {
	machineState
	deps *instructionDeps
	pool *workersPool

	finalizeOnce sync.Once
}

var _ Interpreter = (*parallelInterpreter)(nil)

func newParallelInterpreter(graph *ExecutionGraph, outputLocs []MemLocation, numThreads int) *parallelInterpreter {
	return &parallelInterpreter{
		machineState: newMachineState(graph, outputLocs),
		deps:         computeDeps(graph),
		pool:         newWorkersPool(numThreads),
	}
}

// Run implements Interpreter.
func (it *parallelInterpreter) Run(args *objects.Tuple) (*objects.Tuple, error) {
	if err := it.bindArgs(args); err != nil {
		return nil, err
	}
	defer func() { it.args = nil }()

	instructions := it.graph.Instructions()
	n := len(instructions)

	// ready holds instructions whose in-edges are all satisfied. Buffered
	// for the whole program so completions never block on it.
	ready := make(chan int, n)
	pending := make([]int, n)
	copy(pending, it.deps.numDeps)

	var (
		mu            sync.Mutex // protects pending, completed and collectErrors
		completed     int
		collectErrors []error
		inFlight      sync.WaitGroup
	)
	stopFn := sync.OnceFunc(func() { close(ready) })

	for j := range n {
		if pending[j] == 0 {
			ready <- j
		}
	}
	if n == 0 {
		stopFn()
	}

	// fireTask fires one instruction and, on completion, retires it:
	// successors whose pending-predecessor count reaches zero are pushed to
	// the ready queue, and the queue is closed once the whole program has
	// fired or an error interrupted it.
	fireTask := func(pos int) {
		defer inFlight.Done()
		mu.Lock()
		interrupted := len(collectErrors) > 0
		mu.Unlock()
		if interrupted {
			// The run already failed; skip instructions still queued.
			return
		}
		err := fireInstruction(instructions[pos], it)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			collectErrors = append(collectErrors, errors.WithMessagef(err, "while executing instruction #%d", pos))
			stopFn()
			return
		}
		if len(collectErrors) > 0 {
			// Interrupted anyway.
			return
		}
		completed++
		if completed == n {
			stopFn()
			return
		}
		for _, succ := range it.deps.dependents[pos] {
			pending[succ]--
			if pending[succ] == 0 {
				ready <- succ
			}
		}
	}

	// Dispatcher loop: quick instructions fire inline on this goroutine --
	// the handoff to a worker would dominate their cost -- the rest go to
	// the pool.
	for pos := range ready {
		inFlight.Add(1)
		if instructions[pos].Quick() {
			fireTask(pos)
		} else {
			it.pool.submit(func() { fireTask(pos) })
		}
	}
	inFlight.Wait()

	if len(collectErrors) > 0 {
		return nil, collectErrors[0]
	}
	return it.gatherOutputs()
}

// Finalize implements Interpreter.
func (it *parallelInterpreter) Finalize() {
	it.finalizeOnce.Do(func() {
		it.pool.close()
		it.releaseSlots()
	})
}
