package util

import "runtime"

// HeapAllocBytes returns the bytes currently allocated on the heap.
func HeapAllocBytes() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}
