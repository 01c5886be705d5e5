//go:build engine_test

package core

import (
	"errors"
	"testing"
	"time"

	"github.com/encodeous/gsqr/protocol"
	"github.com/encodeous/gsqr/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeaconTickBroadcastsAndCounts(t *testing.T) {
	f := newNodeFixture(t, 1)
	require.Equal(t, 1, f.sched.Pending(), "startup beacon should be scheduled")

	f.tick(state.BeaconStartupDelay)

	frames := f.net.SentFrames()
	require.Len(t, frames, 1)
	require.Len(t, frames[0], protocol.BeaconSize)

	var hello protocol.Beacon
	require.NoError(t, hello.Decode(frames[0]))
	assert.Equal(t, state.NodeId(1), hello.Sender)
	assert.Equal(t, state.Seconds(f.clock.Now()), hello.Timestamp)
	assert.Equal(t, f.s.CentralCfg.Metrics.MeanETX, hello.MeanETX)
	assert.Equal(t, f.s.CentralCfg.Metrics.ResidualEnergy, hello.ResidualEnergy)
	assert.Equal(t, f.s.CentralCfg.Metrics.QueueLength, hello.QueueLength)

	assert.Equal(t, uint64(1), f.beacon.PacketsSent)
	assert.Equal(t, uint64(protocol.BeaconSize), f.beacon.BytesSent)
	assert.Equal(t, 1, f.sched.Pending(), "next tick should be scheduled")

	f.tick(f.s.CentralCfg.BeaconInterval)
	assert.Equal(t, uint64(2), f.beacon.PacketsSent)
	assert.Equal(t, uint64(2*protocol.BeaconSize), f.beacon.BytesSent)
}

func TestBeaconSendFailureKeepsCountersAndSchedule(t *testing.T) {
	f := newNodeFixture(t, 1)
	f.net.FailNext = errors.New("radio off")

	f.tick(state.BeaconStartupDelay)

	assert.Equal(t, uint64(0), f.beacon.PacketsSent)
	assert.Equal(t, uint64(0), f.beacon.BytesSent)
	require.Equal(t, 1, f.sched.Pending(), "failed tick must still reschedule")

	// the protocol self-heals: the next tick sends normally
	f.tick(f.s.CentralCfg.BeaconInterval)
	assert.Equal(t, uint64(1), f.beacon.PacketsSent)
	assert.Equal(t, uint64(protocol.BeaconSize), f.beacon.BytesSent)
}

func TestBeaconZeroWriteNotCounted(t *testing.T) {
	f := newNodeFixture(t, 1)
	f.net.ZeroNext = true

	f.tick(state.BeaconStartupDelay)

	assert.Equal(t, uint64(0), f.beacon.PacketsSent)
	assert.Equal(t, 1, f.sched.Pending())
}

func TestBeaconReceiveUpsertsNeighbour(t *testing.T) {
	f := newNodeFixture(t, 1)

	f.hear(helloFrom(2, 12.5), "eth0")

	n, ok := f.s.Neighbours.Get(2)
	require.True(t, ok)
	assert.Equal(t, 1.5, n.MeanETX)
	assert.Equal(t, 95.0, n.ResidualEnergy)
	assert.Equal(t, 0.1, n.QueueLength)
	assert.Equal(t, "eth0", n.Iface)
	assert.Equal(t, f.clock.Now(), n.HeardAt)
	assert.Equal(t, uint64(1), f.beacon.PacketsReceived)
	assert.Equal(t, uint64(protocol.BeaconSize), f.beacon.BytesReceived)

	// the engine's candidate set follows the table
	assert.Equal(t, []state.NodeId{2}, f.engine.Candidates[1])
	assert.Equal(t, []float64{1.5, 95, 0.1}, f.engine.NodeFeatures(2))

	// a later beacon overwrites the entry wholesale but keeps its position
	f.hear(helloFrom(3, 13.0), "eth0")
	heard := f.clock.Advance(time.Second)
	refresh := helloFrom(2, 14.0)
	refresh.MeanETX = 2.25
	f.hear(refresh, "wlan0")

	n, _ = f.s.Neighbours.Get(2)
	assert.Equal(t, 2.25, n.MeanETX)
	assert.Equal(t, "wlan0", n.Iface)
	assert.Equal(t, heard, n.HeardAt)
	assert.Equal(t, []state.NodeId{2, 3}, f.s.Neighbours.Ids())
}

func TestBeaconReceiveTruncatedDropped(t *testing.T) {
	f := newNodeFixture(t, 1)

	hello := helloFrom(2, 1.0)
	full := hello.Encode(nil)
	f.net.Deliver(full[:protocol.BeaconSize-1], "eth0")
	f.drain()

	assert.Equal(t, 0, f.s.Neighbours.Len())
	assert.Equal(t, uint64(0), f.beacon.PacketsReceived)
}

func TestBeaconIgnoresOwnEcho(t *testing.T) {
	f := newNodeFixture(t, 1)

	f.hear(helloFrom(1, 1.0), "eth0")

	assert.Equal(t, 0, f.s.Neighbours.Len())
	assert.Equal(t, uint64(0), f.beacon.PacketsReceived)
}

func TestNeighbourNeverForgottenByDefault(t *testing.T) {
	f := newNodeFixture(t, 1)
	f.hear(helloFrom(2, 1.0), "eth0")

	// silence for hours of beacon ticks, entry must survive
	for range 100 {
		f.tick(time.Hour)
	}

	_, ok := f.s.Neighbours.Get(2)
	assert.True(t, ok)
	assert.Equal(t, []state.NodeId{2}, f.engine.Candidates[1])
}

func TestNeighbourExpiryWhenEnabled(t *testing.T) {
	f := newNodeFixture(t, 1)
	f.s.CentralCfg.NeighbourExpiry = time.Second

	f.hear(helloFrom(2, 1.0), "eth0")
	f.tick(state.BeaconStartupDelay)
	_, ok := f.s.Neighbours.Get(2)
	require.True(t, ok, "fresh neighbour must survive the sweep")

	f.tick(2 * time.Second)

	_, ok = f.s.Neighbours.Get(2)
	assert.False(t, ok)
	assert.Empty(t, f.engine.Candidates[1])
}

func TestBeaconCleanupCancelsTimer(t *testing.T) {
	f := newNodeFixture(t, 1)
	require.Equal(t, 1, f.sched.Pending())

	require.NoError(t, f.beacon.Cleanup(f.s))

	assert.Equal(t, 0, f.sched.Pending())
}
