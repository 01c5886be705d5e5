package state

import (
	"slices"
	"time"
)

// Neighbour is one row of the beacon table: the last advertised link metrics
// of a node we can hear, plus bookkeeping about when and where we heard it.
type Neighbour struct {
	Id             NodeId
	MeanETX        float64
	ResidualEnergy float64
	QueueLength    float64
	HeardAt        time.Time
	Iface          string
	Beacons        uint64
}

// NeighbourTable keeps one entry per distinct sender, iterated in the order
// neighbours were first heard. It is only touched from the main loop, so it
// carries no lock.
type NeighbourTable struct {
	order   []NodeId
	entries map[NodeId]*Neighbour
}

func NewNeighbourTable() *NeighbourTable {
	return &NeighbourTable{
		entries: make(map[NodeId]*Neighbour),
	}
}

// Upsert inserts n or refreshes the existing entry with n's metrics,
// timestamp and interface. The first-heard position of an existing
// neighbour never changes.
func (t *NeighbourTable) Upsert(n Neighbour) {
	cur, ok := t.entries[n.Id]
	if !ok {
		n.Beacons = 1
		t.order = append(t.order, n.Id)
		t.entries[n.Id] = &n
		return
	}
	cur.MeanETX = n.MeanETX
	cur.ResidualEnergy = n.ResidualEnergy
	cur.QueueLength = n.QueueLength
	cur.HeardAt = n.HeardAt
	cur.Iface = n.Iface
	cur.Beacons++
}

func (t *NeighbourTable) Get(id NodeId) (Neighbour, bool) {
	cur, ok := t.entries[id]
	if !ok {
		return Neighbour{}, false
	}
	return *cur, true
}

// Ids returns the neighbour ids in first-heard order.
func (t *NeighbourTable) Ids() []NodeId {
	return slices.Clone(t.order)
}

func (t *NeighbourTable) Len() int {
	return len(t.order)
}

// Expire removes every neighbour last heard before the cutoff and returns
// the evicted ids in table order.
func (t *NeighbourTable) Expire(cutoff time.Time) []NodeId {
	var evicted []NodeId
	t.order = slices.DeleteFunc(t.order, func(id NodeId) bool {
		if t.entries[id].HeardAt.Before(cutoff) {
			evicted = append(evicted, id)
			delete(t.entries, id)
			return true
		}
		return false
	})
	return evicted
}
