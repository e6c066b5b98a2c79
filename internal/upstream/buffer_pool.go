package upstream

import "sync"

// BufferPool is a wrapper around sync.Pool that provides a pool of reusable byte slices.
// It satisfies httputil.BufferPool.
type BufferPool struct {
	sync.Pool
}

// NewBufferPool sets up the pool with 32KB buffers.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		Pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, 32*1024)
			},
		},
	}
}

func (b *BufferPool) Get() []byte {
	return b.Pool.Get().([]byte)
}

func (b *BufferPool) Put(buf []byte) {
	b.Pool.Put(buf)
}
