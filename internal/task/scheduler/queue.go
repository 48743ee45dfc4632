package scheduler

import (
	"container/heap"

	"tasksched/internal/task"
)

// workQueue is a min-heap keyed by (priority, id). The id tie-break keeps
// the order deterministic even when stored data breaks priority uniqueness.
type workQueue []task.Task

func (q workQueue) Len() int           { return len(q) }
func (q workQueue) Less(i, j int) bool { return task.Less(q[i], q[j]) }
func (q workQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *workQueue) Push(x any) { *q = append(*q, x.(task.Task)) }

func (q *workQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

func newWorkQueue(tasks []task.Task) *workQueue {
	q := make(workQueue, len(tasks))
	copy(q, tasks)
	heap.Init(&q)
	return &q
}

func (q *workQueue) pop() (task.Task, bool) {
	if q.Len() == 0 {
		return task.Task{}, false
	}
	return heap.Pop(q).(task.Task), true
}
