package memory

import (
	"sync"
	"sync/atomic"
)

// Pool is a typed object pool. Put resets the value through the reset hook
// before it becomes reusable.
type Pool[T any] struct {
	p     sync.Pool
	reset func(*T)

	live atomic.Int64
}

func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.p.New = func() any { return ctor() }
	return p
}

func (p *Pool[T]) Get() *T {
	p.live.Add(1)
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		panic("memory.Pool: Put(nil)")
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.live.Add(-1)
	p.p.Put(v)
}

// Live is the number of values handed out and not yet returned.
func (p *Pool[T]) Live() int64 {
	return p.live.Load()
}
