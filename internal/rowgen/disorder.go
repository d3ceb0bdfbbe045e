package rowgen

import (
	"container/heap"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// DisorderWindow configures out-of-order injection over one half-open
// timestamp interval [Start, End) (spec §4.3 "Row production & disorder").
type DisorderWindow struct {
	Start, End  int64
	Ratio       float64 // probability a row in this window is delayed
	LatencyHigh int64   // delay sampled uniformly from [0, LatencyHigh)
}

func (w DisorderWindow) contains(ts int64) bool { return ts >= w.Start && ts < w.End }

// pendingRow is a row held back for out-of-order delivery, ordered by
// DeliverAt in the priority queue.
type pendingRow struct {
	row       model.Row
	deliverAt int64
	index     int
}

type pendingQueue []*pendingRow

func (q pendingQueue) Len() int            { return len(q) }
func (q pendingQueue) Less(i, j int) bool  { return q[i].deliverAt < q[j].deliverAt }
func (q pendingQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index, q[j].index = i, j }
func (q *pendingQueue) Push(x interface{}) {
	pr := x.(*pendingRow)
	pr.index = len(*q)
	*q = append(*q, pr)
}
func (q *pendingQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
