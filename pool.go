package peoplecount

import (
	"sync"

	"go.uber.org/multierr"
)

// DetectorFactory creates the i'th detector of a Pool.  The index lets
// implementations spread detectors across NPU cores.
type DetectorFactory func(i int) (Detector, error)

// Pool is a simple pool of Counters, each owning its own Detector, so that
// several videos can be counted concurrently
type Pool struct {
	// counters available for use
	counters chan *Counter
	// size of pool
	size  int
	close sync.Once
	err   error
}

// NewPool creates size Counters using detectors from factory
func NewPool(size int, factory DetectorFactory, p Params, opts ...Option) (*Pool, error) {

	if size < 1 {
		size = 1
	}

	pool := &Pool{
		counters: make(chan *Counter, size),
		size:     size,
	}

	for i := 0; i < size; i++ {
		det, err := factory(i)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			pool.Close()
			return nil, err
		}

		c, err := NewCounter(det, p, opts...)

		if err != nil {
			det.Close()
			pool.Close()
			return nil, err
		}

		pool.Return(c)
	}

	return pool, nil
}

// Size returns the number of counters in the pool
func (p *Pool) Size() int {
	return p.size
}

// Available returns the number of idle counters
func (p *Pool) Available() int {
	return len(p.counters)
}

// Get blocks until a counter is free and returns it
func (p *Pool) Get() *Counter {
	return <-p.counters
}

// Return a counter to the pool
func (p *Pool) Return(c *Counter) {
	select {
	case p.counters <- c:
	default:
		// pool is full
	}
}

// CountPeople counts the video at path using the next free counter
func (p *Pool) CountPeople(path string) (*Result, error) {
	c := p.Get()
	defer p.Return(c)
	return c.Count(path)
}

// Close the pool and all detectors in it.  Counters checked out at the time
// of closing must not be returned afterwards.
func (p *Pool) Close() error {
	p.close.Do(func() {
		n := len(p.counters)

		for i := 0; i < n; i++ {
			c := <-p.counters
			p.err = multierr.Append(p.err, c.Close())
		}
	})

	return p.err
}
