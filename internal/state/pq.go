package state

import (
	"container/heap"
	"time"
)

// pqItem schedules the next probe of one (pool, member) pair.
type pqItem struct {
	due      time.Time
	poolID   int
	memberID int
}

// probeQueue is a min-heap of probe due times.
type probeQueue []pqItem

func (q probeQueue) Len() int { return len(q) }

func (q probeQueue) Less(i, j int) bool {
	// ties broken by member id so ordering is total
	if q[i].due.Equal(q[j].due) {
		return q[i].memberID < q[j].memberID
	}
	return q[i].due.Before(q[j].due)
}

func (q probeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *probeQueue) Push(x any) { *q = append(*q, x.(pqItem)) }

func (q *probeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*probeQueue)(nil)
