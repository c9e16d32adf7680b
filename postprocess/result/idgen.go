package result

import "sync"

// IDGenerator holds a counter for generating the next incremental ID number
// assigned to detection results.  Safe for use from concurrent decode workers.
type IDGenerator struct {
	id int64
	sync.Mutex
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental number
func (id *IDGenerator) GetNext() int64 {
	id.Lock()
	defer id.Unlock()
	id.id++
	return id.id
}
