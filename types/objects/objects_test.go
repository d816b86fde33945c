package objects

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTensorRefCounting(t *testing.T) {
	tensor := FromFlatData([]float32{1, 2, 3}, []int{3}, CPU)
	assert.Equal(t, int64(1), tensor.RefCount())
	assert.True(t, tensor.Ok())

	tensor.Acquire()
	assert.Equal(t, int64(2), tensor.RefCount())
	tensor.Release()
	assert.Equal(t, int64(1), tensor.RefCount())
	assert.True(t, tensor.Ok())

	tensor.Release()
	assert.False(t, tensor.Ok())
	assert.Panics(t, func() { tensor.Acquire() })
	assert.Panics(t, func() { tensor.Release() })
	assert.Panics(t, func() { tensor.Flat() })
}

func TestTupleHoldsElements(t *testing.T) {
	a := FromScalar(int64(1), CPU)
	b := FromScalar(int64(2), CPU)
	tuple := NewTuple(a, b)
	assert.Equal(t, int64(2), a.RefCount())
	assert.Equal(t, int64(2), b.RefCount())
	assert.Equal(t, 2, tuple.Len())
	assert.Same(t, Object(a), tuple.At(0))
	assert.Same(t, Object(b), tuple.At(1))
	assert.True(t, tuple.IsTuple())
	assert.False(t, a.IsTuple())

	// Dropping the creators' references leaves the elements alive through
	// the tuple; releasing the tuple cascades.
	a.Release()
	b.Release()
	assert.True(t, a.Ok())
	tuple.Release()
	assert.False(t, a.Ok())
	assert.False(t, b.Ok())
}

func TestTupleAtBounds(t *testing.T) {
	tuple := NewTuple()
	defer tuple.Release()
	assert.Panics(t, func() { tuple.At(0) })
	assert.Panics(t, func() { NewTuple(nil) })
}

func TestAllocTensor(t *testing.T) {
	tensor := AllocTensor(dtypes.Float32, []int{2, 3}, GPU)
	defer tensor.Release()
	assert.Equal(t, GPU, tensor.Device())
	assert.Equal(t, dtypes.Float32, tensor.DType())
	assert.Equal(t, []int{2, 3}, tensor.Shape().Dimensions)
	assert.Equal(t, 6, tensor.Size())

	// Fresh storage is zero-valued and writable.
	flat := TensorData[float32](tensor)
	require.Len(t, flat, 6)
	for _, v := range flat {
		assert.Zero(t, v)
	}
	flat[0] = 7
	assert.Equal(t, float32(7), TensorData[float32](tensor)[0])
}

func TestFromFlatDataCopies(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	tensor := FromFlatData(data, []int{2, 2}, CPU)
	defer tensor.Release()
	data[0] = 99
	assert.Equal(t, float64(1), TensorData[float64](tensor)[0])

	assert.Panics(t, func() { FromFlatData([]float64{1, 2, 3}, []int{2, 2}, CPU) })
}

func TestScalarAsSize(t *testing.T) {
	for _, tensor := range []*Tensor{
		FromScalar(int64(5), CPU),
		FromScalar(int32(5), CPU),
		FromScalar(uint8(5), CPU),
	} {
		size, err := ScalarAsSize(tensor)
		require.NoError(t, err)
		assert.Equal(t, 5, size)
		tensor.Release()
	}

	// Non-integer scalar.
	f := FromScalar(float32(5), CPU)
	defer f.Release()
	_, err := ScalarAsSize(f)
	assert.Error(t, err)

	// Non-scalar.
	v := FromFlatData([]int64{1, 2}, []int{2}, CPU)
	defer v.Release()
	_, err = ScalarAsSize(v)
	assert.Error(t, err)

	// Negative.
	neg := FromScalar(int64(-1), CPU)
	defer neg.Release()
	_, err = ScalarAsSize(neg)
	assert.Error(t, err)

	// Tuple.
	tuple := NewTuple()
	defer tuple.Release()
	_, err = ScalarAsSize(tuple)
	assert.Error(t, err)
}

func TestScalarValue(t *testing.T) {
	tensor := FromScalar(int32(13), CPU)
	defer tensor.Release()
	assert.Equal(t, int32(13), scalarValue[int32](tensor))
}

func TestTensorDataTypeChecks(t *testing.T) {
	tensor := FromScalar(float32(1), CPU)
	defer tensor.Release()
	assert.Panics(t, func() { TensorData[float64](tensor) })
	tuple := NewTuple()
	defer tuple.Release()
	assert.Panics(t, func() { TensorData[float32](tuple) })
}

func TestDeviceString(t *testing.T) {
	assert.Equal(t, "CPU", CPU.String())
	assert.Equal(t, "GPU", GPU.String())
	assert.Equal(t, "InvalidDevice", Device(7).String())
}
