package collab

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// Tick is the resolution of both the clock server and all velocity/
// acceleration units: one tick = 10ms.
const Tick = 10 * time.Millisecond

// Clock is the clock-server collaborator: a monotonic tick counter advanced
// by a real hardware timer (time.Ticker, standing in for the interrupt),
// servicing Time/Delay/DelayUntil from a priority queue of sleepers so no
// caller busy-waits.
//
// The sleeper priority queue is a stdlib container/heap min-heap: no pack
// example ships a timer wheel or delay-queue library, and a handful of
// sleepers serviced once per tick needs nothing fancier (see DESIGN.md).
type Clock struct {
	ticks   uint32
	mu      sync.Mutex
	waiters sleeperHeap
	stop    chan struct{}
	once    sync.Once
}

// NewClock starts the tick-advancing goroutine and returns the running clock.
func NewClock() *Clock {
	c := &Clock{stop: make(chan struct{})}
	go c.run()
	return c
}

func (c *Clock) run() {
	t := time.NewTicker(Tick)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.onTick()
		case <-c.stop:
			return
		}
	}
}

func (c *Clock) onTick() {
	now := atomic.AddUint32(&c.ticks, 1)
	c.mu.Lock()
	var ready []chan struct{}
	for c.waiters.Len() > 0 && c.waiters[0].at <= now {
		s := heap.Pop(&c.waiters).(*sleeper)
		ready = append(ready, s.wake)
	}
	c.mu.Unlock()
	for _, wake := range ready {
		close(wake)
	}
}

// Stop halts the tick-advancing goroutine; Time no longer advances
// afterwards. It is safe to call more than once.
func (c *Clock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Time returns ticks elapsed since the clock started.
func (c *Clock) Time() uint32 {
	return atomic.LoadUint32(&c.ticks)
}

// Delay blocks the caller for d ticks.
func (c *Clock) Delay(d uint32) {
	c.DelayUntil(c.Time() + d)
}

// DelayUntil blocks the caller until the tick counter reaches at, returning
// immediately if at has already passed.
func (c *Clock) DelayUntil(at uint32) {
	if c.Time() >= at {
		return
	}
	wake := make(chan struct{})
	c.mu.Lock()
	heap.Push(&c.waiters, &sleeper{at: at, wake: wake})
	c.mu.Unlock()
	<-wake
}

type sleeper struct {
	at   uint32
	wake chan struct{}
}

type sleeperHeap []*sleeper

func (h sleeperHeap) Len() int            { return len(h) }
func (h sleeperHeap) Less(i, j int) bool  { return h[i].at < h[j].at }
func (h sleeperHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sleeperHeap) Push(x interface{}) { *h = append(*h, x.(*sleeper)) }
func (h *sleeperHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
