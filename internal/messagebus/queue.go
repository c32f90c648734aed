package messagebus

import (
	"container/heap"

	"github.com/rhema-sh/coordinator/internal/coretypes"
)

// deliveryKind distinguishes how a queued message should be routed once
// it reaches the front of the priority queue.
type deliveryKind int

const (
	deliverUnicast deliveryKind = iota
	deliverBroadcast
	deliverSession
)

// queuedMessage is one pending delivery: the message itself plus routing
// and FIFO tie-break information.
type queuedMessage struct {
	msg       coretypes.Message
	kind      deliveryKind
	sessionID string
	seq       uint64
}

// priorityQueue is a container/heap priority queue ordering by message
// priority descending (Critical dispatched before Low), then by
// submission sequence ascending (FIFO within a priority level) — the
// "strict priority queue with FIFO within each level" the bus must
// provide.
type priorityQueue []*queuedMessage

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].msg.Priority != q[j].msg.Priority {
		return q[i].msg.Priority > q[j].msg.Priority
	}
	return q[i].seq < q[j].seq
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) {
	*q = append(*q, x.(*queuedMessage))
}

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

var _ heap.Interface = (*priorityQueue)(nil)
