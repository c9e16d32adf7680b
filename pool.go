package visionpost

import (
	"runtime"
	"sync"
)

// Pool is a fixed size worker pool used to fan decode work out across CPU
// cores.  Every unit of work is an independent pure computation over its own
// input data, so units may run on any worker in any order.  Callers that need
// ordered output write results by index, not by completion order.
type Pool struct {
	// size of pool
	size int
	// affinity is an optional CPU core mask applied to worker threads
	affinity uintptr
}

// NewPool creates a worker pool of the given size.  A size of zero or less
// uses one worker per CPU core.
func NewPool(size int) *Pool {

	if size <= 0 {
		size = runtime.NumCPU()
	}

	return &Pool{
		size: size,
	}
}

// WithCPUAffinity pins pool worker threads to the CPU cores in the given
// mask, see CPUCoreMask.  A zero mask leaves scheduling to the OS.
func (p *Pool) WithCPUAffinity(mask uintptr) *Pool {
	p.affinity = mask
	return p
}

// Size returns the number of workers in the pool
func (p *Pool) Size() int {
	return p.size
}

// Each runs fn for every index in [0, n) across the pool workers and blocks
// until all have completed.  fn must not share mutable state between indices.
func (p *Pool) Each(n int, fn func(idx int)) {

	if n <= 0 {
		return
	}

	workers := p.size

	if workers > n {
		workers = n
	}

	if workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	idxCh := make(chan int)

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()

			if p.affinity != 0 {
				// pin this worker thread to the configured cores
				runtime.LockOSThread()
				_ = SetCPUAffinity(p.affinity)
			}

			for i := range idxCh {
				fn(i)
			}
		}()
	}

	for i := 0; i < n; i++ {
		idxCh <- i
	}

	close(idxCh)
	wg.Wait()
}
