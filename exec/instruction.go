package exec

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"

	"github.com/gomlx/execgraph/types/objects"
)

// InstructionKind tags the operation an Instruction performs.
type InstructionKind uint8

const (
	// KindLoadArgument copies the i-th run argument into its slot.
	KindLoadArgument InstructionKind = iota

	// KindAlloc allocates an uninitialized tensor whose shape is read from
	// scalar-integer slots.
	KindAlloc

	// KindBuildTup packs the objects at its read slots into a tuple.
	KindBuildTup

	// KindReturnByRef invokes a kernel that writes into the pre-allocated
	// tensor already stored at the write slot.
	KindReturnByRef

	// KindReturnByVal invokes a kernel that produces a fresh object, stored
	// at the write slot.
	KindReturnByVal
)

// String implements fmt.Stringer.
func (k InstructionKind) String() string {
	switch k {
	case KindLoadArgument:
		return "LoadArgument"
	case KindAlloc:
		return "Alloc"
	case KindBuildTup:
		return "BuildTup"
	case KindReturnByRef:
		return "ReturnByRef"
	case KindReturnByVal:
		return "ReturnByVal"
	default:
		return "InvalidInstructionKind"
	}
}

// Instruction is one step of an ExecutionGraph: a tagged variant carrying
// the common fields (kind, repr, source hash, quick flag, read slots, write
// slot) plus the per-kind payload. Instructions are stored contiguously and
// dispatched with a switch on the kind, instead of virtual dispatch on a
// per-kind heap object.
type Instruction struct {
	kind       InstructionKind
	repr       string
	sourceHash int64
	quick      bool
	readLocs   []MemLocation
	writeLoc   MemLocation

	// Per-kind payload: argIndex for LoadArgument, dtype for Alloc, one of
	// the callables for ReturnByRef/ReturnByVal.
	argIndex int
	dtype    dtypes.DType
	byRef    ByRefCallable
	byVal    ByValCallable
}

// NewLoadArgument creates an instruction that stores the argIndex-th run
// argument at writeLoc. Always quick.
func NewLoadArgument(repr string, sourceHash int64, argIndex int, writeLoc MemLocation) *Instruction {
	return &Instruction{
		kind:       KindLoadArgument,
		repr:       repr,
		sourceHash: sourceHash,
		quick:      true,
		writeLoc:   writeLoc,
		argIndex:   argIndex,
	}
}

// NewAlloc creates an instruction that allocates an uninitialized tensor of
// the given dtype at writeLoc, on writeLoc's device. The shape components
// are read as scalar integers from readLocs. Always quick.
func NewAlloc(repr string, sourceHash int64, dtype dtypes.DType, readLocs []MemLocation, writeLoc MemLocation) *Instruction {
	return &Instruction{
		kind:       KindAlloc,
		repr:       repr,
		sourceHash: sourceHash,
		quick:      true,
		readLocs:   readLocs,
		writeLoc:   writeLoc,
		dtype:      dtype,
	}
}

// NewBuildTup creates an instruction that packs the objects at readLocs, in
// order, into a tuple stored at writeLoc. Always quick.
func NewBuildTup(repr string, sourceHash int64, readLocs []MemLocation, writeLoc MemLocation) *Instruction {
	return &Instruction{
		kind:       KindBuildTup,
		repr:       repr,
		sourceHash: sourceHash,
		quick:      true,
		readLocs:   readLocs,
		writeLoc:   writeLoc,
	}
}

// NewReturnByRef creates an instruction that invokes callable with the
// objects at readLocs and the pre-allocated output tensor at writeLoc. The
// kernel mutates the output in place; no new object is stored. quick hints
// that the kernel is short enough to inline on the scheduling thread.
func NewReturnByRef(repr string, sourceHash int64, readLocs []MemLocation, writeLoc MemLocation, callable ByRefCallable, quick bool) *Instruction {
	return &Instruction{
		kind:       KindReturnByRef,
		repr:       repr,
		sourceHash: sourceHash,
		quick:      quick,
		readLocs:   readLocs,
		writeLoc:   writeLoc,
		byRef:      callable,
	}
}

// NewReturnByVal creates an instruction that invokes callable with the
// objects at readLocs and stores the object it produces at writeLoc. quick
// hints that the kernel is short enough to inline on the scheduling thread.
func NewReturnByVal(repr string, sourceHash int64, readLocs []MemLocation, writeLoc MemLocation, callable ByValCallable, quick bool) *Instruction {
	return &Instruction{
		kind:       KindReturnByVal,
		repr:       repr,
		sourceHash: sourceHash,
		quick:      quick,
		readLocs:   readLocs,
		writeLoc:   writeLoc,
		byVal:      callable,
	}
}

// Kind returns the instruction's operation tag.
func (instr *Instruction) Kind() InstructionKind { return instr.kind }

// Repr returns the human-readable representation used in logs and profiling.
func (instr *Instruction) Repr() string { return instr.repr }

// SourceHash returns the stable hash of the upstream source construct this
// instruction was lowered from, used to aggregate profiling across runs.
func (instr *Instruction) SourceHash() int64 { return instr.sourceHash }

// Quick returns whether the instruction is short enough that handing it to a
// worker would cost more than firing it inline.
func (instr *Instruction) Quick() bool { return instr.quick }

// ReadLocs returns the slots the instruction reads. Callers must not mutate
// the returned slice.
func (instr *Instruction) ReadLocs() []MemLocation { return instr.readLocs }

// WriteLoc returns the slot the instruction writes.
func (instr *Instruction) WriteLoc() MemLocation { return instr.writeLoc }

// String implements fmt.Stringer.
func (instr *Instruction) String() string { return instr.repr }

// machine is the interpreter surface exposed to instructions.
type machine interface {
	// get returns the object at loc, borrowed until the next set on loc.
	get(loc MemLocation) objects.Object

	// set stores obj at loc: the displaced occupant (if any) is released
	// and obj is acquired.
	set(loc MemLocation, obj objects.Object)

	// getarg returns the i-th object of the current argument tuple,
	// borrowed for the duration of the run.
	getarg(i int) objects.Object
}

// fire executes the instruction against m. Any error is fatal to the run.
func (instr *Instruction) fire(m machine) error {
	switch instr.kind {
	case KindLoadArgument:
		m.set(instr.writeLoc, m.getarg(instr.argIndex))
		return nil

	case KindAlloc:
		reads, err := instr.gatherReads(m)
		if err != nil {
			return err
		}
		dimensions := make([]int, len(reads))
		for i, obj := range reads {
			size, err := objects.ScalarAsSize(obj)
			if err != nil {
				return errors.Wrapf(ErrTypeMismatch, "%s: shape component #%d: %v", instr, i, err)
			}
			dimensions[i] = size
		}
		tensor := objects.AllocTensor(instr.dtype, dimensions, instr.writeLoc.Device)
		m.set(instr.writeLoc, tensor)
		tensor.Release()
		return nil

	case KindBuildTup:
		reads, err := instr.gatherReads(m)
		if err != nil {
			return err
		}
		tuple := objects.NewTuple(reads...)
		m.set(instr.writeLoc, tuple)
		tuple.Release()
		return nil

	case KindReturnByRef:
		reads, err := instr.gatherReads(m)
		if err != nil {
			return err
		}
		write := m.get(instr.writeLoc)
		if write == nil {
			return errors.Wrapf(ErrTypeMismatch, "%s: write slot %s holds no pre-allocated output", instr, instr.writeLoc)
		}
		if _, ok := write.(*objects.Tensor); !ok {
			return errors.Wrapf(ErrTypeMismatch, "%s: write slot %s holds %v, expected a pre-allocated tensor", instr, instr.writeLoc, write)
		}
		if err := instr.byRef.Call(reads, write); err != nil {
			return errors.Wrapf(ErrKernelFailure, "%s: %v", instr, err)
		}
		return nil

	case KindReturnByVal:
		reads, err := instr.gatherReads(m)
		if err != nil {
			return err
		}
		out, err := instr.byVal.Call(reads)
		if err != nil {
			return errors.Wrapf(ErrKernelFailure, "%s: %v", instr, err)
		}
		if out == nil {
			return errors.Wrapf(ErrKernelFailure, "%s: kernel returned no object", instr)
		}
		m.set(instr.writeLoc, out)
		out.Release()
		return nil

	default:
		return errors.Errorf("invalid instruction kind %d", instr.kind)
	}
}

// gatherReads collects the objects at the instruction's read slots. The
// slice is freshly built per invocation, per the callable ABI.
func (instr *Instruction) gatherReads(m machine) ([]objects.Object, error) {
	if len(instr.readLocs) == 0 {
		return nil, nil
	}
	reads := make([]objects.Object, len(instr.readLocs))
	for i, loc := range instr.readLocs {
		obj := m.get(loc)
		if obj == nil {
			return nil, errors.Wrapf(ErrUninitializedRead, "%s: read slot %s is empty", instr, loc)
		}
		reads[i] = obj
	}
	return reads, nil
}
