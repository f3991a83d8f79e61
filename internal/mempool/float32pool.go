// Package mempool reuses float32 buffers across recognition batches. The
// NCHW input tensor is the hottest allocation in the pipeline and its size
// repeats across batches of similar width.
package mempool

import "sync"

const step = 1024

var pools sync.Map // size class (int) -> *sync.Pool

// sizeClass rounds n up to the next bucket to reduce churn.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

// GetFloat32 retrieves a []float32 buffer with length n from the pool. The
// contents are not zeroed; callers must overwrite every element. Return it
// via PutFloat32 when done.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{
		New: func() any { return make([]float32, cls) },
	})
	buf := pAny.(*sync.Pool).Get().([]float32)
	if cap(buf) < n {
		buf = make([]float32, cls)
	}
	return buf[:n]
}

// PutFloat32 returns a buffer to the pool. A nil slice is ignored.
func PutFloat32(buf []float32) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	pAny, _ := pools.LoadOrStore(cls, &sync.Pool{
		New: func() any { return make([]float32, cls) },
	})
	pAny.(*sync.Pool).Put(buf[:cap(buf)]) //nolint:staticcheck
}
