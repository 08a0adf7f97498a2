// Package atomicfloat provides a lock-free float64. Location stores its
// per-train velocity/position estimates in it; those values are read only
// inside Location's own loop and reach other servers by message.
package atomicfloat

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Float64 encapsulates a float64 for non-locking atomic operations.
type Float64 struct {
	val float64
}

// New returns a Float64 initialized to val.
func New(val float64) *Float64 {
	return &Float64{val: val}
}

// Read atomically reads the float64, ensuring the value is not a stale local copy.
func (af *Float64) Read() float64 {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&af.val)))
	return math.Float64frombits(bits)
}

// Add atomically adds addend, retrying on CAS failure against the latest value.
func (af *Float64) Add(addend float64) (newVal float64) {
	for {
		old := af.Read()
		newVal = old + addend
		if atomic.CompareAndSwapUint64(
			(*uint64)(unsafe.Pointer(&af.val)),
			math.Float64bits(old),
			math.Float64bits(newVal),
		) {
			return
		}
	}
}

// Set atomically sets the float64 to newVal.
func (af *Float64) Set(newVal float64) {
	for {
		old := af.Read()
		if atomic.CompareAndSwapUint64(
			(*uint64)(unsafe.Pointer(&af.val)),
			math.Float64bits(old),
			math.Float64bits(newVal),
		) {
			return
		}
	}
}
