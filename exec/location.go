package exec

import (
	"fmt"

	"github.com/gomlx/execgraph/types/objects"
)

// MemLocation names a cell in the interpreter's slot storage: a dense index
// and the device where the cell's buffer lives.
//
// For a graph with NumLocs slots, valid indices span [0, NumLocs). The first
// NumArgs indices are reserved for the inputs, written by LoadArgument
// instructions at the start of every run.
type MemLocation struct {
	Index  int
	Device objects.Device
}

// Loc is a shorthand constructor for a MemLocation.
func Loc(index int, device objects.Device) MemLocation {
	return MemLocation{Index: index, Device: device}
}

// String implements fmt.Stringer.
func (loc MemLocation) String() string {
	return fmt.Sprintf("%%%d@%s", loc.Index, loc.Device)
}
