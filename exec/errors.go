package exec

import "github.com/pkg/errors"

// Errors raised by graph validation and interpretation. All of them are
// fatal to the current run; they are matched with errors.Is.
var (
	// ErrArgArity signals a Run call whose argument tuple length does not
	// match the graph's argument count.
	ErrArgArity = errors.New("argument arity mismatch")

	// ErrSlotOutOfRange signals an instruction or output location naming a
	// slot outside [0, NumLocs). Caught at construction time.
	ErrSlotOutOfRange = errors.New("memory slot out of range")

	// ErrUninitializedRead signals a read from a slot that holds no object.
	ErrUninitializedRead = errors.New("read from uninitialized memory slot")

	// ErrTypeMismatch signals an object of the wrong kind: a non-scalar or
	// non-integer shape component for Alloc, or a ReturnByRef write slot
	// that does not hold a pre-allocated tensor.
	ErrTypeMismatch = errors.New("object type mismatch")

	// ErrKernelFailure signals a by-reference or by-value callable that
	// returned an error.
	ErrKernelFailure = errors.New("kernel callable failed")
)
