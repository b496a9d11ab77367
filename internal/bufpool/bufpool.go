package bufpool

import "sync"

// Size classes handed out by Get.
const (
	Small  = 4 << 10
	Medium = 32 << 10
	Large  = 128 << 10
)

// Pool hands out reusable byte slices in three size classes.
type Pool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

func newClass(size int) sync.Pool {
	return sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	}
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		small:  newClass(Small),
		medium: newClass(Medium),
		large:  newClass(Large),
	}
}

var defaultPool = New()

// Get returns a slice of length size. Requests above Large are allocated
// directly and are dropped again by Put.
func (p *Pool) Get(size int) []byte {
	var class *sync.Pool
	switch {
	case size <= Small:
		class = &p.small
	case size <= Medium:
		class = &p.medium
	case size <= Large:
		class = &p.large
	default:
		return make([]byte, size)
	}
	buf := class.Get().(*[]byte)
	return (*buf)[:size]
}

// Put returns buf to its size class. Slices whose capacity does not match a
// class are left to the GC.
func (p *Pool) Put(buf []byte) {
	full := buf[:cap(buf)]
	switch cap(buf) {
	case Small:
		p.small.Put(&full)
	case Medium:
		p.medium.Put(&full)
	case Large:
		p.large.Put(&full)
	}
}

// Get takes a buffer from the process-wide pool.
func Get(size int) []byte {
	return defaultPool.Get(size)
}

// Put gives a buffer back to the process-wide pool.
func Put(buf []byte) {
	defaultPool.Put(buf)
}
