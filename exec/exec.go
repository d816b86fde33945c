// Package exec is the execution core of a computation-graph runtime: it
// evaluates a precompiled ExecutionGraph -- a linear program of instructions
// addressing tensor objects by memory slot -- against caller-supplied
// arguments and returns a tuple of results.
//
// Graph construction, optimization and lowering happen upstream; the kernels
// behind ReturnByRef/ReturnByVal instructions are supplied by the host
// through the callable ABI in this package.
//
// Use NewInterpreter to create an interpreter over a graph. With one thread
// it executes instructions in program order on the caller goroutine; with
// more, it schedules them over a fixed worker pool respecting the data
// dependencies between instructions, with the same observable results.
package exec

import (
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/execgraph/types/objects"
)

// Interpreter evaluates an ExecutionGraph.
//
// A single Interpreter must not have Run invoked concurrently from two
// goroutines. Two interpreters over the same graph may run concurrently.
type Interpreter interface {
	// Run evaluates the program against args, borrowed for the duration of
	// the call, and returns the output tuple, owned by the caller.
	//
	// Slots are not cleared between runs: constants and pre-allocated
	// buffers survive, argument slots are overwritten by the next run.
	// On error, slot state is left as-is for diagnosis and the interpreter
	// remains usable.
	Run(args *objects.Tuple) (*objects.Tuple, error)

	// Finalize releases every slot and, for parallel interpreters, joins
	// the worker pool. The interpreter is invalid afterwards.
	Finalize()
}

// NewInterpreter creates an interpreter over graph. The graph is borrowed
// and must outlive the interpreter.
//
// outputLocs are the slots gathered into the output tuple at the end of each
// run. numThreads must be >= 1: with 1 the interpreter is sequential, with
// more it dispatches over numThreads workers.
func NewInterpreter(graph *ExecutionGraph, outputLocs []MemLocation, numThreads int) (Interpreter, error) {
	if numThreads < 1 {
		return nil, errors.Errorf("NewInterpreter: numThreads must be >= 1, got %d", numThreads)
	}
	for i, loc := range outputLocs {
		if loc.Index < 0 || loc.Index >= graph.NumLocs() {
			return nil, errors.Wrapf(ErrSlotOutOfRange, "output location #%d is slot %d, graph has %d slots",
				i, loc.Index, graph.NumLocs())
		}
	}
	if numThreads == 1 {
		klog.V(1).Infof("exec: sequential interpreter over %d instructions", graph.NumInstructions())
		return newSequentialInterpreter(graph, outputLocs), nil
	}
	klog.V(1).Infof("exec: parallel interpreter over %d instructions with %d workers",
		graph.NumInstructions(), numThreads)
	return newParallelInterpreter(graph, outputLocs, numThreads), nil
}

// machineState is the slot storage and argument binding shared by both
// interpreter flavors. It implements the machine interface instructions
// fire against.
type machineState struct {
	graph      *ExecutionGraph
	outputLocs []MemLocation

	// storage holds one object handle per slot, all nil initially. Entries
	// are only mutated through set. In parallel runs the dependency DAG
	// guarantees no two workers touch the same slot concurrently, and the
	// scheduler's synchronization publishes a producer's set before any
	// consumer fires.
	storage []objects.Object

	// args is the argument tuple of the run in flight, nil between runs.
	args *objects.Tuple
}

func newMachineState(graph *ExecutionGraph, outputLocs []MemLocation) machineState {
	return machineState{
		graph:      graph,
		outputLocs: append([]MemLocation(nil), outputLocs...),
		storage:    make([]objects.Object, graph.NumLocs()),
	}
}

func (s *machineState) get(loc MemLocation) objects.Object {
	return s.storage[loc.Index]
}

func (s *machineState) set(loc MemLocation, obj objects.Object) {
	// Acquire before releasing the displaced occupant: they may be the
	// same object.
	obj.Acquire()
	if prev := s.storage[loc.Index]; prev != nil {
		prev.Release()
	}
	s.storage[loc.Index] = obj
}

func (s *machineState) getarg(i int) objects.Object {
	return s.args.At(i)
}

// bindArgs checks the argument arity and binds the tuple for the run.
func (s *machineState) bindArgs(args *objects.Tuple) error {
	if args.Len() != s.graph.NumArgs() {
		return errors.Wrapf(ErrArgArity, "graph takes %d arguments, Run called with %d", s.graph.NumArgs(), args.Len())
	}
	s.args = args
	return nil
}

// gatherOutputs packs the objects at the output locations into a fresh
// tuple, owned by the caller.
func (s *machineState) gatherOutputs() (*objects.Tuple, error) {
	outputs := make([]objects.Object, len(s.outputLocs))
	for i, loc := range s.outputLocs {
		obj := s.storage[loc.Index]
		if obj == nil {
			return nil, errors.Wrapf(ErrUninitializedRead, "output location #%d (slot %s) was never written", i, loc)
		}
		outputs[i] = obj
	}
	return objects.NewTuple(outputs...), nil
}

// releaseSlots drops every slot's reference.
func (s *machineState) releaseSlots() {
	for i, obj := range s.storage {
		if obj != nil {
			obj.Release()
			s.storage[i] = nil
		}
	}
}

// fireInstruction fires instr against m, consulting the profiler if active.
func fireInstruction(instr *Instruction, m machine) error {
	profiler := GetProfiler()
	if !profiler.IsOn() {
		return instr.fire(m)
	}
	start := time.Now()
	err := instr.fire(m)
	profiler.Update(instr, time.Since(start).Seconds())
	return err
}

// sequentialInterpreter runs the program in order on the caller goroutine.
type sequentialInterpreter struct {
	machineState
}

var _ Interpreter = (*sequentialInterpreter)(nil)

func newSequentialInterpreter(graph *ExecutionGraph, outputLocs []MemLocation) *sequentialInterpreter {
	return &sequentialInterpreter{machineState: newMachineState(graph, outputLocs)}
}

// Run implements Interpreter.
func (it *sequentialInterpreter) Run(args *objects.Tuple) (*objects.Tuple, error) {
	if err := it.bindArgs(args); err != nil {
		return nil, err
	}
	defer func() { it.args = nil }()

	for pos, instr := range it.graph.Instructions() {
		if err := fireInstruction(instr, it); err != nil {
			return nil, errors.WithMessagef(err, "while executing instruction #%d", pos)
		}
	}
	return it.gatherOutputs()
}

// Finalize implements Interpreter.
func (it *sequentialInterpreter) Finalize() {
	it.releaseSlots()
}
