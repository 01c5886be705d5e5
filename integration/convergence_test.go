//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/encodeous/gsqr/core"
	"github.com/encodeous/gsqr/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// ada can reach dst through bob or cal. Feedback says bob delivers fast and
// cheap while cal is slow and expensive, so ada's learned ranking must
// settle on bob; reversed feedback must flip it back.
func TestLearningConvergence(t *testing.T) {
	defer goleak.VerifyNone(t)
	vh := &VirtualHarness{}
	vh.NewNode("ada")
	bob := vh.NewNode("bob")
	cal := vh.NewNode("cal")
	dst := vh.NewNode("dst")
	vh.AddBiLink("ada", "bob")
	vh.AddBiLink("ada", "cal")

	vh.Start()
	defer vh.Stop()

	ada := vh.StateOf("ada")
	require.Eventually(t, func() bool {
		return Query(t, ada, func(st *state.State) int { return st.Neighbours.Len() }) == 2
	}, 5*time.Second, 50*time.Millisecond)

	train := func(goodVia, badVia state.NodeId) {
		for range 100 {
			Query(t, ada, func(st *state.State) bool {
				e := core.Get[*core.Engine](st)
				e.ReceiveAck(dst, goodVia, 0.01, 1)
				e.ReceiveAck(dst, badVia, 2.0, 50)
				return true
			})
		}
	}
	type hop struct {
		nh  state.NodeId
		err error
	}
	nextHop := func() state.NodeId {
		got := Query(t, ada, func(st *state.State) hop {
			nh, err := core.Get[*core.Engine](st).NextHop(st.LocalCfg.Id, dst)
			return hop{nh, err}
		})
		require.NoError(t, got.err)
		return got.nh
	}

	train(bob, cal)
	assert.Equal(t, bob, nextHop())
	qGood := Query(t, ada, func(st *state.State) float64 {
		e := core.Get[*core.Engine](st)
		return core.ComputeQ(e.Store, dst, bob) - core.ComputeQ(e.Store, dst, cal)
	})
	assert.Positive(t, qGood)

	// the world changes: cal becomes the good path
	train(cal, bob)
	assert.Equal(t, cal, nextHop())
}

// Feedback about nodes with no embedding must leave the model untouched.
func TestFeedbackForUnknownNodeIsIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)
	vh := &VirtualHarness{}
	vh.NewNode("ada")
	bob := vh.NewNode("bob")
	vh.AddBiLink("ada", "bob")

	vh.Start()
	defer vh.Stop()

	ada := vh.StateOf("ada")
	const stranger state.NodeId = 999
	changed := Query(t, ada, func(st *state.State) bool {
		return core.Get[*core.Engine](st).ReceiveAck(stranger, bob, 0.5, 1)
	})
	assert.False(t, changed)

	known := Query(t, ada, func(st *state.State) bool {
		return core.Get[*core.Engine](st).Store.Has(stranger)
	})
	assert.False(t, known)
}
