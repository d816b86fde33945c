// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package objects

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// Tuple is an ordered collection of objects. A tuple holds a reference to
// each of its elements: they are acquired at construction and released when
// the tuple itself is freed.
type Tuple struct {
	refs     atomic.Int64
	elements []Object
}

// NewTuple creates a tuple with the given elements, with one reference owned
// by the caller. Each element is acquired.
func NewTuple(elements ...Object) *Tuple {
	for i, element := range elements {
		if element == nil {
			exceptions.Panicf("objects.NewTuple: element #%d is nil", i)
		}
		element.Acquire()
	}
	t := &Tuple{elements: elements}
	t.refs.Store(1)
	return t
}

// Acquire implements Object.
func (t *Tuple) Acquire() { acquire(&t.refs, "Tuple") }

// Release implements Object. Releasing the last reference releases every
// element; the tuple must not be used afterwards.
func (t *Tuple) Release() {
	release(&t.refs, "Tuple", func() {
		for _, element := range t.elements {
			element.Release()
		}
		t.elements = nil
	})
}

// RefCount implements Object.
func (t *Tuple) RefCount() int64 { return t.refs.Load() }

// Device implements Object. Tuples are host-side containers, so they are
// always tagged CPU, whatever the devices of their elements.
func (t *Tuple) Device() Device { return CPU }

// IsTuple implements Object.
func (t *Tuple) IsTuple() bool { return true }

// Len returns the number of elements.
func (t *Tuple) Len() int { return len(t.elements) }

// At returns the i-th element, borrowed: the reference is valid for as long
// as the tuple is alive.
func (t *Tuple) At(i int) Object {
	if i < 0 || i >= len(t.elements) {
		exceptions.Panicf("objects.Tuple.At(%d): out-of-bounds for tuple of length %d", i, len(t.elements))
	}
	return t.elements[i]
}

// String implements fmt.Stringer.
func (t *Tuple) String() string {
	parts := make([]string, 0, len(t.elements))
	for _, element := range t.elements {
		parts = append(parts, fmt.Sprintf("%v", element))
	}
	return fmt.Sprintf("Tuple(%s)", strings.Join(parts, ", "))
}
