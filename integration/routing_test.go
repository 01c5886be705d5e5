//go:build integration

package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/encodeous/gsqr/core"
	"github.com/encodeous/gsqr/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNextHopComesFromNeighbourSet(t *testing.T) {
	defer goleak.VerifyNone(t)
	vh := &VirtualHarness{}
	vh.NewNode("bob")
	jeb := vh.NewNode("jeb")
	kat := vh.NewNode("kat")
	dst := vh.NewNode("dst")
	vh.AddBiLink("bob", "jeb")
	vh.AddBiLink("bob", "kat")
	// dst is out of range of everyone

	vh.Start()
	defer vh.Stop()

	bob := vh.StateOf("bob")
	require.Eventually(t, func() bool {
		return Query(t, bob, func(st *state.State) int { return st.Neighbours.Len() }) == 2
	}, 5*time.Second, 50*time.Millisecond)

	type hop struct {
		nh  state.NodeId
		err error
	}
	got := Query(t, bob, func(st *state.State) hop {
		nh, err := core.Get[*core.Engine](st).NextHop(st.LocalCfg.Id, dst)
		return hop{nh, err}
	})
	require.NoError(t, got.err)
	assert.Contains(t, []state.NodeId{jeb, kat}, got.nh)
}

func TestNoRouteWhenIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)
	vh := &VirtualHarness{}
	vh.NewNode("bob")
	dst := vh.NewNode("dst")
	// no links at all

	vh.Start()
	defer vh.Stop()

	bob := vh.StateOf("bob")
	time.Sleep(300 * time.Millisecond) // a few beacon ticks into the void

	type hop struct {
		nh  state.NodeId
		err error
	}
	got := Query(t, bob, func(st *state.State) hop {
		nh, err := core.Get[*core.Engine](st).NextHop(st.LocalCfg.Id, dst)
		return hop{nh, err}
	})
	assert.Equal(t, state.NodeId(1), got.nh, "undeliverable packets stay at the current node")
	assert.True(t, errors.Is(got.err, core.ErrNoRoute))
}

// Beacons are best-effort: a lossy, laggy link must still converge to a
// populated neighbour table, just more slowly.
func TestDiscoveryUnderPacketLoss(t *testing.T) {
	defer goleak.VerifyNone(t)
	vh := &VirtualHarness{}
	vh.NewNode("bob")
	vh.NewNode("jeb")
	l1, l2 := vh.AddBiLink("bob", "jeb")
	l1.WithLatency(5*time.Millisecond, 2*time.Millisecond).WithPacketLoss(0.5)
	l2.WithLatency(5*time.Millisecond, 2*time.Millisecond).WithPacketLoss(0.5)

	vh.Start()
	defer vh.Stop()

	for _, name := range []string{"bob", "jeb"} {
		s := vh.StateOf(name)
		require.Eventually(t, func() bool {
			return Query(t, s, func(st *state.State) int { return st.Neighbours.Len() }) == 1
		}, 10*time.Second, 50*time.Millisecond, "%s should eventually hear its peer", name)
	}
}

// An asymmetric link: jeb hears bob, bob never hears jeb.
func TestOneWayLink(t *testing.T) {
	defer goleak.VerifyNone(t)
	vh := &VirtualHarness{}
	vh.NewNode("bob")
	vh.NewNode("jeb")
	vh.AddLink("bob", "jeb")

	vh.Start()
	defer vh.Stop()

	jeb := vh.StateOf("jeb")
	require.Eventually(t, func() bool {
		return Query(t, jeb, func(st *state.State) int { return st.Neighbours.Len() }) == 1
	}, 5*time.Second, 50*time.Millisecond)

	bob := vh.StateOf("bob")
	assert.Equal(t, 0, Query(t, bob, func(st *state.State) int { return st.Neighbours.Len() }))
}
