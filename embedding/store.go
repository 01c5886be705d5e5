// Package embedding keeps the per-node embedding vectors and bias terms the
// learner trains, and moves them to and from disk in a line-oriented csv
// form that survives lossy hand edits.
package embedding

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/encodeous/gsqr/state"
	"gonum.org/v1/gonum/floats"
)

var ErrDimension = errors.New("embedding has wrong dimension")

// zeroVec is handed out for unknown nodes. Callers treat embeddings as
// read-only; every mutation goes through AddScaled.
var zeroVec = make([]float64, state.EmbeddingDim)

// Store holds one vector and one bias per known node. It is confined to the
// main loop and carries no lock.
type Store struct {
	rng     *rand.Rand
	vectors map[state.NodeId][]float64
	biases  map[state.NodeId]float64
}

func NewStore() *Store {
	return newStore(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// NewStoreSeeded builds a store whose generated embeddings are a pure
// function of seed. Tests and reproducible simulations use this.
func NewStoreSeeded(seed uint64) *Store {
	return newStore(rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)))
}

func newStore(rng *rand.Rand) *Store {
	return &Store{
		rng:     rng,
		vectors: make(map[state.NodeId][]float64),
		biases:  make(map[state.NodeId]float64),
	}
}

func (st *Store) Has(node state.NodeId) bool {
	_, ok := st.vectors[node]
	return ok
}

// Get returns the embedding of node, or the zero vector when the node is
// unknown. The miss does not create an entry.
func (st *Store) Get(node state.NodeId) []float64 {
	if vec, ok := st.vectors[node]; ok {
		return vec
	}
	return zeroVec
}

// Bias returns the bias term of node, zero when unknown.
func (st *Store) Bias(node state.NodeId) float64 {
	return st.biases[node]
}

// GenerateOrGet returns the embedding of node, creating one on first sight:
// components drawn uniformly from [-1, 1), bias zero. Calling it again for
// the same node returns the stored vector unchanged.
func (st *Store) GenerateOrGet(node state.NodeId) []float64 {
	if vec, ok := st.vectors[node]; ok {
		return vec
	}
	vec := make([]float64, state.EmbeddingDim)
	for i := range vec {
		vec[i] = st.rng.Float64()*2 - 1
	}
	st.vectors[node] = vec
	st.biases[node] = 0
	return vec
}

// Set installs an explicit embedding and bias for node.
func (st *Store) Set(node state.NodeId, vec []float64, bias float64) error {
	if len(vec) != state.EmbeddingDim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), state.EmbeddingDim)
	}
	st.vectors[node] = slices.Clone(vec)
	st.biases[node] = bias
	return nil
}

// Update applies vec[node] += rate * gradient in place. A node never seen
// before starts from the zero vector. A gradient of the wrong length is
// rejected outright, leaving the store untouched.
func (st *Store) Update(node state.NodeId, gradient []float64, rate float64) error {
	if len(gradient) != state.EmbeddingDim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(gradient), state.EmbeddingDim)
	}
	vec, ok := st.vectors[node]
	if !ok {
		vec = make([]float64, state.EmbeddingDim)
		st.vectors[node] = vec
	}
	floats.AddScaled(vec, rate, gradient)
	return nil
}

// UpdateBias applies bias[node] += rate * gradient, starting from 0 for a
// node never seen before.
func (st *Store) UpdateBias(node state.NodeId, gradient, rate float64) {
	st.biases[node] += rate * gradient
}

// AddScaled applies vec[node] += scale * dir in place and reports whether
// anything moved. Unlike Update it never creates an entry; the learning hot
// path only adjusts embeddings that already exist.
func (st *Store) AddScaled(node state.NodeId, scale float64, dir []float64) bool {
	vec, ok := st.vectors[node]
	if !ok || len(dir) != state.EmbeddingDim {
		return false
	}
	floats.AddScaled(vec, scale, dir)
	return true
}

// AddBias shifts node's bias by delta, reporting whether the node exists.
func (st *Store) AddBias(node state.NodeId, delta float64) bool {
	if _, ok := st.vectors[node]; !ok {
		return false
	}
	st.biases[node] += delta
	return true
}

// Dot is the compatibility score between two embeddings.
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

func (st *Store) Len() int {
	return len(st.vectors)
}

// Ids returns every known node id in ascending order.
func (st *Store) Ids() []state.NodeId {
	ids := make([]state.NodeId, 0, len(st.vectors))
	for id := range st.vectors {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// MemoryKB estimates the resident size of the table: one float64 per
// component plus one for the bias, per node.
func (st *Store) MemoryKB() float64 {
	return float64(len(st.vectors)) * (state.EmbeddingDim*8 + 8) / 1024.0
}
