package postprocess

import (
	"sync"
)

// bufferPool hands out reusable byte buffers keyed by name, avoiding
// allocation contention when decoding mask heavy outputs across workers
type bufferPool struct {
	mu    sync.Mutex
	pools map[string]*sync.Pool
}

func newBufferPool() *bufferPool {
	return &bufferPool{
		pools: make(map[string]*sync.Pool),
	}
}

// Get returns a zeroed []uint8 slice of length size from the named pool,
// registering the pool on first use
func (b *bufferPool) Get(name string, size int) []uint8 {

	b.mu.Lock()
	pool, ok := b.pools[name]

	if !ok {
		pool = &sync.Pool{
			New: func() any {
				return []uint8(nil)
			},
		}
		b.pools[name] = pool
	}

	b.mu.Unlock()

	buf := pool.Get().([]uint8)

	if cap(buf) < size {
		return make([]uint8, size)
	}

	buf = buf[:size]

	for i := range buf {
		buf[i] = 0
	}

	return buf
}

// Put returns a buffer back to its named pool.  Only call Put on a buffer
// previously obtained via Get with the same name.
func (b *bufferPool) Put(name string, buf []uint8) {

	b.mu.Lock()
	pool, ok := b.pools[name]
	b.mu.Unlock()

	if !ok {
		return
	}

	pool.Put(buf[:cap(buf)])
}
