package Storage

import (
	"sync/atomic"
	"time"
)

// IDGenerator issues task ids that look like the millisecond timestamps
// existing records carry but never repeat within the process, even when
// several assignments land in the same millisecond.
type IDGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

func (g *IDGenerator) Next() int64 {
	for {
		candidate := g.now().UnixMilli()
		prev := g.last.Load()
		if candidate <= prev {
			candidate = prev + 1
		}
		if g.last.CompareAndSwap(prev, candidate) {
			return candidate
		}
	}
}
