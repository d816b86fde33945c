package exec

import (
	"github.com/pkg/errors"
)

// ExecutionGraph is a precompiled linear program of instructions over a
// dense array of memory slots. It owns its instructions and is immutable
// once built; it can be freely shared read-only across interpreters.
type ExecutionGraph struct {
	instructions []*Instruction
	numArgs      int
	numLocs      int
}

// NewExecutionGraph builds a graph from the instruction sequence, the number
// of argument slots and the total number of slots.
//
// It validates what can be validated statically: every slot reference must
// be in [0, numLocs), every LoadArgument index in [0, numArgs), and every
// read slot must be the write slot of some earlier instruction -- except for
// LoadArgument instructions, which have no reads.
func NewExecutionGraph(instructions []*Instruction, numArgs, numLocs int) (*ExecutionGraph, error) {
	if numArgs < 0 || numLocs < numArgs {
		return nil, errors.Errorf("invalid slot counts: numArgs=%d, numLocs=%d", numArgs, numLocs)
	}
	written := make([]bool, numLocs)
	for pos, instr := range instructions {
		if instr == nil {
			return nil, errors.Errorf("instruction #%d is nil", pos)
		}
		for _, loc := range instr.readLocs {
			if loc.Index < 0 || loc.Index >= numLocs {
				return nil, errors.Wrapf(ErrSlotOutOfRange, "instruction #%d (%s) reads slot %d, graph has %d slots",
					pos, instr, loc.Index, numLocs)
			}
			if !written[loc.Index] {
				return nil, errors.Wrapf(ErrUninitializedRead, "instruction #%d (%s) reads slot %d before any instruction writes it",
					pos, instr, loc.Index)
			}
		}
		writeIdx := instr.writeLoc.Index
		if writeIdx < 0 || writeIdx >= numLocs {
			return nil, errors.Wrapf(ErrSlotOutOfRange, "instruction #%d (%s) writes slot %d, graph has %d slots",
				pos, instr, writeIdx, numLocs)
		}
		if instr.kind == KindLoadArgument && (instr.argIndex < 0 || instr.argIndex >= numArgs) {
			return nil, errors.Errorf("instruction #%d (%s) loads argument %d, graph has %d arguments",
				pos, instr, instr.argIndex, numArgs)
		}
		written[writeIdx] = true
	}
	return &ExecutionGraph{
		instructions: instructions,
		numArgs:      numArgs,
		numLocs:      numLocs,
	}, nil
}

// Instructions returns the program, in order. Callers must not mutate the
// returned slice.
func (g *ExecutionGraph) Instructions() []*Instruction { return g.instructions }

// NumArgs returns the number of argument slots.
func (g *ExecutionGraph) NumArgs() int { return g.numArgs }

// NumLocs returns the total number of slots.
func (g *ExecutionGraph) NumLocs() int { return g.numLocs }

// NumInstructions returns the length of the program.
func (g *ExecutionGraph) NumInstructions() int { return len(g.instructions) }
