package core

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/encodeous/gsqr/embedding"
	"github.com/encodeous/gsqr/perf"
	"github.com/encodeous/gsqr/state"
	"github.com/jellydator/ttlcache/v3"
)

var ErrNoRoute = errors.New("no next hop available")

// defaultFeatures is returned for nodes we have not heard any metrics from.
var defaultFeatures = []float64{1.0, 1.0, 0.0}

// Engine owns the learned forwarding model: the embedding store, the
// per-node candidate sets and the feature table fed by beacons.
type Engine struct {
	*state.State
	// Store may be assigned before Init to control seeding, as the
	// harnesses do. Left nil, Init creates a randomly seeded store.
	Store *embedding.Store
	// Candidates holds the neighbour set each node forwards through. The
	// local node's entry tracks the beacon table; other entries exist so
	// one process can evaluate routes of a whole simulated topology.
	Candidates map[state.NodeId][]state.NodeId
	Features   map[state.NodeId][]float64
	warnDedup  *ttlcache.Cache[string, struct{}]
}

func (e *Engine) Init(s *state.State) error {
	s.Log.Debug("init engine")
	e.State = s
	if e.Store == nil {
		e.Store = embedding.NewStore()
	}
	e.Candidates = make(map[state.NodeId][]state.NodeId)
	e.Features = make(map[state.NodeId][]float64)
	e.warnDedup = ttlcache.New[string, struct{}](
		ttlcache.WithTTL[string, struct{}](state.MissWarnTTL),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	if path := s.LocalCfg.EmbeddingPath; path != "" {
		loaded, skipped, err := e.Store.Load(path)
		if err != nil {
			s.Log.Warn("could not load embeddings, continuing with previous table", "path", path, "err", err)
		} else {
			s.Log.Info("loaded embeddings", "path", path, "nodes", loaded, "skippedLines", skipped)
		}
	}
	// every configured node gets an embedding up front so feedback can
	// train against it immediately; loaded entries are kept as-is
	for _, node := range s.CentralCfg.Nodes {
		e.Store.GenerateOrGet(node.Id)
	}

	s.Env.RepeatTask(func(s *state.State) error {
		e.warnDedup.DeleteExpired()
		return nil
	}, state.MissWarnTTL)
	return nil
}

func (e *Engine) Cleanup(s *state.State) error {
	if path := s.LocalCfg.EmbeddingPath; path != "" && e.Store != nil {
		if err := e.Store.Save(path); err != nil {
			s.Log.Warn("failed to save embeddings", "path", path, "err", err)
		} else {
			s.Log.Info("saved embeddings", "path", path, "nodes", e.Store.Len())
		}
	}
	e.State = nil
	e.Candidates = nil
	e.Features = nil
	return nil
}

// Log routes trace events to debug logging and warn events to a
// deduplicated warning, so a node with a hole in its model does not flood
// the log once per packet.
func (e *Engine) Log(event EngineEvent, desc string, args ...any) {
	msg := fmt.Sprintf("%s %s", event.String(), desc)
	if event < 1000 {
		if state.DBG_log_learning {
			e.Env.Log.Info(msg, args...)
		} else {
			e.Env.Log.Debug(msg, args...)
		}
		return
	}
	key := fmt.Sprint(event, args)
	if e.warnDedup.Has(key) {
		e.Env.Log.Debug(msg, args...)
		return
	}
	e.warnDedup.Set(key, struct{}{}, ttlcache.DefaultTTL)
	e.Env.Log.Warn(msg, args...)
}

// NextHop picks where current should forward a packet destined to dest,
// the highest-scoring member of current's candidate set. When current has
// no known neighbours the packet has nowhere to go and current itself is
// returned along with ErrNoRoute.
func (e *Engine) NextHop(current, dest state.NodeId) (state.NodeId, error) {
	start := time.Now()
	defer func() {
		perf.SelectLatency.Add(float64(time.Since(start).Microseconds()))
	}()
	cands := e.Candidates[current]
	nh := ChooseNextHop(e.Store, dest, current, cands, e)
	if len(cands) == 0 {
		return current, fmt.Errorf("%w: node %s has no neighbours", ErrNoRoute, e.CentralCfg.NodeName(current))
	}
	return nh, nil
}

// ReceiveAck applies one round of feedback for a packet that travelled to
// dest through nh: delay in seconds, energy as the transmission cost of
// the hop. Reports whether the model changed.
func (e *Engine) ReceiveAck(dest, nh state.NodeId, delay, energy float64) bool {
	delta, ok := ApplyAck(e.Store, e.CentralCfg.Learning, dest, nh, delay, energy, e)
	if !ok {
		return false
	}
	perf.AcksPerSecond.Add(1)
	perf.TDError.Add(math.Abs(delta))
	return true
}

// UpdateNeighbourList replaces node's candidate set wholesale.
func (e *Engine) UpdateNeighbourList(node state.NodeId, neighbours []state.NodeId) {
	e.Candidates[node] = slices.Clone(neighbours)
}

// NodeFeatures returns the advertised metrics of node as a feature vector,
// or a neutral default for nodes never heard from.
func (e *Engine) NodeFeatures(node state.NodeId) []float64 {
	if f, ok := e.Features[node]; ok {
		return f
	}
	return defaultFeatures
}

func (e *Engine) SetNodeFeatures(node state.NodeId, features []float64) {
	e.Features[node] = features
}

// MemoryUsageKB estimates the size of the learned model.
func (e *Engine) MemoryUsageKB() float64 {
	return e.Store.MemoryKB()
}
