package pool

// compactAt is the number of consumed slots after which the backing array
// is shifted down.
const compactAt = 64

// queue is an unbounded FIFO. It is not synchronized; Pool guards it.
type queue[J any] struct {
	items []J
	head  int
}

func (q *queue[J]) push(job J) {
	q.items = append(q.items, job)
}

func (q *queue[J]) pop() (J, bool) {
	var zero J
	if q.head == len(q.items) {
		return zero, false
	}
	job := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head >= compactAt && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return job, true
}

func (q *queue[J]) len() int {
	return len(q.items) - q.head
}
