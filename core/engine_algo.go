package core

// The learning rule follows Q-routing (Boyan & Littman, 1994), with the
// Q-table replaced by per-node embeddings: the score of forwarding through
// a neighbour y towards a destination d is Q(d, y) = <h_d, h_y> + b_y.

import (
	"fmt"

	"github.com/encodeous/gsqr/embedding"
	"github.com/encodeous/gsqr/state"
)

type EngineEvent int

// trace events

const (
	NextHopChosen EngineEvent = iota
	FeedbackApplied
)

// warn events

const (
	NoCandidates EngineEvent = iota + 1000
	MissingEmbedding
)

func (e EngineEvent) String() string {
	switch e {
	case NextHopChosen:
		return "NextHopChosen"
	case FeedbackApplied:
		return "FeedbackApplied"
	case NoCandidates:
		return "NoCandidates"
	case MissingEmbedding:
		return "MissingEmbedding"
	}
	return fmt.Sprintf("EngineEvent(%d)", int(e))
}

// Learner is the interface the decision functions report through
type Learner interface {
	Log(event EngineEvent, desc string, args ...any)
}

// ComputeQ scores nh as the next hop towards dest. When either node has no
// embedding the score is 0.0, bias included; the operation surfaces report
// MissingEmbedding for the absent side.
func ComputeQ(store *embedding.Store, dest, nh state.NodeId) float64 {
	if !store.Has(dest) || !store.Has(nh) {
		return 0
	}
	return embedding.Dot(store.Get(dest), store.Get(nh)) + store.Bias(nh)
}

// ChooseNextHop returns the candidate with the highest Q towards dest.
// Ties keep the earliest candidate. An empty candidate list returns
// current unchanged, which a caller treats as "no route".
func ChooseNextHop(store *embedding.Store, dest, current state.NodeId, candidates []state.NodeId, l Learner) state.NodeId {
	if len(candidates) == 0 {
		l.Log(NoCandidates, "no neighbours to forward through", "node", current, "dest", dest)
		return current
	}
	if !store.Has(dest) {
		// every candidate scores 0.0, so the first one wins
		l.Log(MissingEmbedding, "destination has no embedding", "dest", dest)
	}
	var (
		best  state.NodeId
		bestQ float64
	)
	for i, cand := range candidates {
		if !store.Has(cand) {
			l.Log(MissingEmbedding, "candidate has no embedding", "via", cand)
		}
		q := ComputeQ(store, dest, cand)
		if i == 0 || q > bestQ {
			best = cand
			bestQ = q
		}
	}
	l.Log(NextHopChosen, "selected next hop", "dest", dest, "via", best, "q", bestQ)
	return best
}

// ApplyAck folds one delivery acknowledgement into the model. The reward
// is the negated delay plus a weighted energy penalty; the temporal
// difference against the current estimate moves the neighbour's embedding
// towards (or away from) the destination's.
//
// Returns the applied error term, and false when either endpoint has no
// embedding yet, in which case nothing is modified.
func ApplyAck(store *embedding.Store, cfg state.LearningCfg, dest, nh state.NodeId, delay, energy float64, l Learner) (float64, bool) {
	if !store.Has(nh) || !store.Has(dest) {
		l.Log(MissingEmbedding, "feedback for nodes without embeddings", "dest", dest, "via", nh)
		return 0, false
	}
	reward := -delay - cfg.Lambda*energy
	qCurrent := ComputeQ(store, dest, nh)

	// the downstream node's own estimate would need a second feedback
	// round trip we do not have, so the future term contributes nothing
	qNext := 0.0
	tdError := reward + cfg.Gamma*qNext - qCurrent

	store.AddScaled(nh, cfg.Alpha*tdError, store.Get(dest))
	store.AddBias(nh, cfg.Alpha*tdError)
	l.Log(FeedbackApplied, "applied feedback", "dest", dest, "via", nh, "tdError", tdError)
	return tdError, true
}
