package exec

import "github.com/gomlx/execgraph/types/objects"

// ByRefFun is the host boundary for kernels that write into a pre-allocated
// output buffer. The reads slice is rebuilt per invocation and must not be
// retained after the call returns.
type ByRefFun func(data any, reads []objects.Object, write objects.Object) error

// ByValFun is the host boundary for kernels that produce their own output
// object -- used when the output shape or type could not be planned ahead.
// The returned object carries one reference owned by the interpreter.
type ByValFun func(data any, reads []objects.Object) (objects.Object, error)

// ByRefCallable bundles a ByRefFun with the opaque data pointer bound at
// creation.
type ByRefCallable struct {
	Fn   ByRefFun
	Data any
}

// Call invokes the kernel.
func (c ByRefCallable) Call(reads []objects.Object, write objects.Object) error {
	return c.Fn(c.Data, reads, write)
}

// ByValCallable bundles a ByValFun with the opaque data pointer bound at
// creation.
type ByValCallable struct {
	Fn   ByValFun
	Data any
}

// Call invokes the kernel and returns the produced object.
func (c ByValCallable) Call(reads []objects.Object) (objects.Object, error) {
	return c.Fn(c.Data, reads)
}
