// Package pqueue provides the min-priority queue backing the
// pathfinder's open set.
package pqueue

import "container/heap"

type entry[T any] struct {
	item     T
	priority float64
	seq      uint64
}

type entryHeap[T any] []entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	// Insertion order breaks ties so searches are deterministic.
	return h[i].seq < h[j].seq
}

func (h entryHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) { *h = append(*h, x.(entry[T])) }

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue pops items in ascending priority order. Put never updates an
// existing entry: inserting the same item twice leaves two entries, and
// consumers that relax priorities are expected to skip stale pops using
// their own authoritative state.
type Queue[T any] struct {
	h   entryHeap[T]
	seq uint64
}

func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

func (q *Queue[T]) Put(item T, priority float64) {
	q.seq++
	heap.Push(&q.h, entry[T]{item: item, priority: priority, seq: q.seq})
}

// Pop removes and returns the entry with minimal priority. It panics on
// an empty queue; callers gate on Empty.
func (q *Queue[T]) Pop() (T, float64) {
	e := heap.Pop(&q.h).(entry[T])
	return e.item, e.priority
}

func (q *Queue[T]) Empty() bool {
	return len(q.h) == 0
}

func (q *Queue[T]) Len() int {
	return len(q.h)
}
