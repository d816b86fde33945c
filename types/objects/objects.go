// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package objects implements the reference-counted runtime values the
// execution core operates on: tensors (n-dimensional arrays backed by a flat
// Go slice) and tuples of objects.
//
// Every object carries an atomic reference count. Objects are created with
// one reference owned by the creator; Acquire and Release adjust the count,
// and releasing the last reference frees the backing storage. Tuples hold a
// reference to each of their elements for as long as they are alive.
package objects

import (
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// Device tags where an object's buffer lives.
type Device uint8

const (
	// CPU is host memory.
	CPU Device = iota

	// GPU is accelerator memory. The core never copies across devices:
	// programs are expected to carry explicit transfers.
	GPU
)

// String implements fmt.Stringer.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case GPU:
		return "GPU"
	default:
		return "InvalidDevice"
	}
}

// Object is a reference-counted runtime value: either a *Tensor or a *Tuple.
type Object interface {
	// Acquire increments the reference count.
	Acquire()

	// Release decrements the reference count, freeing the object when it
	// reaches zero.
	Release()

	// RefCount returns the current reference count. It is inherently racy
	// under concurrent use and meant for tests and diagnostics.
	RefCount() int64

	// Device returns where the object's storage lives.
	Device() Device

	// IsTuple returns whether the object is a *Tuple.
	IsTuple() bool
}

// acquire and release are the shared reference accounting. The owner
// provides the free function called when the count reaches zero.
func acquire(count *atomic.Int64, what string) {
	if count.Add(1) <= 1 {
		// Undo the increment: a freed object stays freed.
		count.Add(-1)
		exceptions.Panicf("objects: Acquire on a freed %s", what)
	}
}

func release(count *atomic.Int64, what string, free func()) {
	n := count.Add(-1)
	if n < 0 {
		exceptions.Panicf("objects: Release on a freed %s (double free)", what)
	}
	if n == 0 {
		free()
	}
}
