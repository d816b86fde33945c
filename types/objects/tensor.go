// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package objects

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/gomlx/execgraph/types/shapes"
)

// SupportedTypesConstraints enumerates the Go types a Tensor's flat storage
// can be made of.
type SupportedTypesConstraints interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 |
		float32 | float64 | float16.Float16 | bfloat16.BFloat16
}

// Tensor is an n-dimensional array object: a shape, a device tag and a flat
// backing slice of the Go type matching the shape's DType.
type Tensor struct {
	refs   atomic.Int64
	shape  shapes.Shape
	device Device

	// flat is always a slice of the underlying data type (shape.DType).
	// Set to nil when the last reference is released.
	flat any
}

// AllocTensor returns a new uninitialized tensor with the given dtype,
// dimensions and device, with one reference owned by the caller.
//
// The flat storage is freshly allocated and zero-valued; kernels firing
// by-reference are expected to overwrite it.
func AllocTensor(dtype dtypes.DType, dimensions []int, device Device) *Tensor {
	shape := shapes.Make(dtype, dimensions...)
	t := &Tensor{
		shape:  shape,
		device: device,
		flat:   reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), shape.Size(), shape.Size()).Interface(),
	}
	t.refs.Store(1)
	return t
}

// FromFlatData creates a tensor with the given dimensions and flat contents,
// with one reference owned by the caller. The data is copied.
func FromFlatData[T SupportedTypesConstraints](data []T, dimensions []int, device Device) *Tensor {
	shape := shapes.Make(dtypes.FromGenericsType[T](), dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("objects.FromFlatData: shape %s needs %d values, got %d", shape, shape.Size(), len(data))
	}
	flat := make([]T, len(data))
	copy(flat, data)
	t := &Tensor{shape: shape, device: device, flat: flat}
	t.refs.Store(1)
	return t
}

// FromScalar creates a scalar tensor holding the given value, with one
// reference owned by the caller.
func FromScalar[T SupportedTypesConstraints](value T, device Device) *Tensor {
	t := &Tensor{
		shape:  shapes.Make(dtypes.FromGenericsType[T]()),
		device: device,
		flat:   []T{value},
	}
	t.refs.Store(1)
	return t
}

// Acquire implements Object.
func (t *Tensor) Acquire() { acquire(&t.refs, "Tensor") }

// Release implements Object. Releasing the last reference frees the flat
// storage; the tensor must not be used afterwards.
func (t *Tensor) Release() {
	release(&t.refs, "Tensor", func() { t.flat = nil })
}

// RefCount implements Object.
func (t *Tensor) RefCount() int64 { return t.refs.Load() }

// Device implements Object.
func (t *Tensor) Device() Device { return t.device }

// IsTuple implements Object.
func (t *Tensor) IsTuple() bool { return false }

// Ok returns whether the tensor is alive: it has not been freed.
func (t *Tensor) Ok() bool { return t != nil && t.flat != nil }

// Shape of the tensor, includes the DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType is a shortcut to Tensor.Shape().DType.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Flat returns the backing slice as an `any` -- it is always a slice of the
// Go type matching the tensor's DType. Kernels mutating it in place must
// only do so while they own the corresponding write slot.
func (t *Tensor) Flat() any {
	if t.flat == nil {
		exceptions.Panicf("objects: Tensor.Flat on a freed tensor")
	}
	return t.flat
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	if !t.Ok() {
		return "Tensor<freed>"
	}
	return fmt.Sprintf("Tensor<%s@%s>", t.shape, t.device)
}

// TensorData returns the typed flat slice of a tensor object. It panics if
// obj is not a tensor of the requested type.
func TensorData[T SupportedTypesConstraints](obj Object) []T {
	t, ok := obj.(*Tensor)
	if !ok {
		exceptions.Panicf("objects.TensorData: object %v is not a Tensor", obj)
	}
	flat, ok := t.Flat().([]T)
	if !ok {
		exceptions.Panicf("objects.TensorData[%T]: tensor dtype is %s", flat, t.DType())
	}
	return flat
}

// ScalarAsSize reads the object as a non-negative scalar integer, used to
// evaluate shape components of allocation instructions.
func ScalarAsSize(obj Object) (int, error) {
	t, ok := obj.(*Tensor)
	if !ok {
		return 0, errors.Errorf("object %v is not a tensor", obj)
	}
	if !t.shape.IsScalar() {
		return 0, errors.Errorf("tensor %s is not a scalar", t)
	}
	if !t.DType().IsInt() {
		return 0, errors.Errorf("tensor %s is not an integer scalar", t)
	}
	v := reflect.ValueOf(t.Flat()).Index(0)
	var size int64
	if t.DType().IsUnsigned() {
		size = int64(v.Uint())
	} else {
		size = v.Int()
	}
	if size < 0 {
		return 0, errors.Errorf("tensor %s holds negative size %d", t, size)
	}
	return int(size), nil
}

// scalarValue returns the single value of a scalar tensor of a known type,
// a small helper for this package and its tests.
func scalarValue[T SupportedTypesConstraints](t *Tensor) T {
	return TensorData[T](t)[0]
}
