package core

import (
	"slices"

	"github.com/encodeous/gsqr/perf"
	"github.com/encodeous/gsqr/protocol"
	"github.com/encodeous/gsqr/state"
)

// Beacon periodically advertises this node's link metrics and maintains the
// neighbour table from the advertisements of others. Counters are monotonic
// over the life of the process; every frame is exactly protocol.BeaconSize
// bytes, so the byte counters measure control overhead directly.
type Beacon struct {
	*state.State
	timer state.TimerHandle

	PacketsSent     uint64
	BytesSent       uint64
	PacketsReceived uint64
	BytesReceived   uint64
}

func (b *Beacon) Init(s *state.State) error {
	s.Log.Debug("init beacon")
	b.State = s
	if s.Net != nil {
		s.Net.SetReceiver(func(pkt []byte, iface string) {
			// the buffer belongs to the transport's read loop
			frame := slices.Clone(pkt)
			s.Dispatch(func(s *state.State) error {
				return beaconHandleFrame(s, frame, iface)
			})
		})
	}
	// the first hello goes out early so peers learn about us quickly,
	// before settling into the configured cadence
	b.timer = s.Sched.ScheduleAfter(state.BeaconStartupDelay, beaconTick)
	return nil
}

func (b *Beacon) Cleanup(s *state.State) error {
	if b.timer != nil {
		b.timer.Cancel()
	}
	b.State = nil
	return nil
}

func beaconTick(s *state.State) error {
	b := Get[*Beacon](s)
	// the schedule continues regardless of how this tick went
	defer func() {
		b.timer = s.Sched.ScheduleAfter(s.CentralCfg.BeaconInterval, beaconTick)
	}()

	if s.Net == nil {
		s.Log.Warn("beacon transport not ready, skipping tick")
		return nil
	}

	hello := protocol.Beacon{
		Sender:         s.LocalCfg.Id,
		Timestamp:      state.Seconds(s.Clock.Now()),
		MeanETX:        s.CentralCfg.Metrics.MeanETX,
		ResidualEnergy: s.CentralCfg.Metrics.ResidualEnergy,
		QueueLength:    s.CentralCfg.Metrics.QueueLength,
	}
	n, err := s.Net.Broadcast(hello.Encode(nil))
	if err != nil {
		s.Log.Warn("failed to send beacon", "err", err)
	} else if n <= 0 {
		s.Log.Warn("beacon transport wrote nothing")
	} else {
		b.PacketsSent++
		b.BytesSent += uint64(n)
		perf.BeaconsPerSecond.Add(1)
		perf.SentBytesPerSecond.Add(float64(n))
		if state.DBG_log_beacon {
			s.Log.Debug("sent beacon", "bytes", n, "ts", hello.Timestamp)
		}
	}

	if expiry := s.CentralCfg.NeighbourExpiry; expiry > 0 {
		for _, id := range s.Neighbours.Expire(s.Clock.Now().Add(-expiry)) {
			s.Log.Info("neighbour expired", "node", s.CentralCfg.NodeName(id))
		}
	}
	Get[*Engine](s).UpdateNeighbourList(s.LocalCfg.Id, s.Neighbours.Ids())
	return nil
}

func beaconHandleFrame(s *state.State, pkt []byte, iface string) error {
	b := Get[*Beacon](s)
	var hello protocol.Beacon
	if err := hello.Decode(pkt); err != nil {
		perf.DroppedFrames.Add(1)
		s.Log.Warn("dropped malformed beacon", "len", len(pkt), "iface", iface, "err", err)
		return nil
	}
	if hello.Sender == s.LocalCfg.Id {
		return nil // our own multicast loopback
	}

	b.PacketsReceived++
	b.BytesReceived += uint64(len(pkt))
	perf.RecvBeaconPerSecond.Add(1)
	perf.RecvBytesPerSecond.Add(float64(len(pkt)))

	s.Neighbours.Upsert(state.Neighbour{
		Id:             hello.Sender,
		MeanETX:        hello.MeanETX,
		ResidualEnergy: hello.ResidualEnergy,
		QueueLength:    hello.QueueLength,
		HeardAt:        s.Clock.Now(),
		Iface:          iface,
	})

	e := Get[*Engine](s)
	e.SetNodeFeatures(hello.Sender, []float64{hello.MeanETX, hello.ResidualEnergy, hello.QueueLength})
	e.UpdateNeighbourList(s.LocalCfg.Id, s.Neighbours.Ids())

	if state.DBG_log_beacon {
		s.Log.Debug("heard beacon",
			"from", s.CentralCfg.NodeName(hello.Sender),
			"iface", iface,
			"ts", hello.Timestamp)
	}
	return nil
}
