//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/encodeous/gsqr/core"
	"github.com/encodeous/gsqr/state"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// VirtualLink is one directed radio path between two nodes. Tests add both
// directions when a link is symmetric.
type VirtualLink struct {
	Id         uuid.UUID
	From, To   state.NodeId
	Latency    time.Duration
	Jitter     time.Duration
	PacketLoss float64
}

func (v *VirtualLink) WithLatency(lat, jitter time.Duration) *VirtualLink {
	v.Latency = lat
	v.Jitter = jitter
	return v
}

func (v *VirtualLink) WithPacketLoss(loss float64) *VirtualLink {
	v.PacketLoss = loss
	return v
}

// Iface is the channel identifier a beacon arriving over this link reports.
func (v *VirtualLink) Iface() string {
	return "vlink-" + v.Id.String()[:8]
}

// VirtualHarness runs a whole topology of real nodes in one process, wired
// through an in-memory broadcast network instead of multicast sockets.
type VirtualHarness struct {
	Central state.CentralCfg
	Local   []state.LocalCfg
	Context context.Context
	Cancel  context.CancelCauseFunc
	States  []*state.State
	Links   []*VirtualLink
	Net     *InMemoryNetwork
}

func (v *VirtualHarness) NewNode(name string) state.NodeId {
	id := state.NodeId(len(v.Central.Nodes) + 1)
	v.Central.Nodes = append(v.Central.Nodes, state.NodeCfg{
		Name: name,
		Id:   id,
	})
	v.Local = append(v.Local, state.LocalCfg{Id: id})
	return id
}

func (v *VirtualHarness) idOf(name string) state.NodeId {
	cfg := v.Central.FindNodeBy(name)
	if cfg == nil {
		panic(fmt.Sprintf("no node named %s", name))
	}
	return cfg.Id
}

// AddLink creates a directed link. Use AddBiLink for ordinary radio links.
func (v *VirtualHarness) AddLink(from, to string) *VirtualLink {
	link := &VirtualLink{
		Id:   uuid.New(),
		From: v.idOf(from),
		To:   v.idOf(to),
	}
	v.Links = append(v.Links, link)
	return link
}

func (v *VirtualHarness) AddBiLink(a, b string) (*VirtualLink, *VirtualLink) {
	return v.AddLink(a, b), v.AddLink(b, a)
}

func (v *VirtualHarness) Start() chan error {
	ctx, cancel := context.WithCancelCause(context.Background())
	v.Context = ctx
	v.Cancel = cancel
	if v.Central.BeaconInterval == 0 {
		// tests want fast discovery, not the production cadence
		v.Central.BeaconInterval = 100 * time.Millisecond
	}
	state.ExpandCentralConfig(&v.Central)
	v.States = make([]*state.State, len(v.Central.Nodes))
	errChan := make(chan error, 128) // a large number so we dont get blocked
	vn := &InMemoryNetwork{cfg: v, transports: make(map[state.NodeId]*NodeTransport)}
	v.Net = vn
	for idx := range v.Central.Nodes {
		id := v.Central.Nodes[idx].Id
		trans := vn.Attach(id)
		go func() {
			restart, cErr := core.Start(v.Central, v.Local[idx], slog.LevelDebug, core.Aux{Net: trans}, &v.States[idx])
			if cErr != nil {
				errChan <- cErr
				return
			}
			if restart {
				panic("node restart is not implemented")
			}
		}()
	}
	// wait for all nodes to start
	for {
		started := true
		for idx := range v.Central.Nodes {
			if v.States[idx] == nil || !v.States[idx].Started.Load() {
				started = false
				break
			}
		}
		if started {
			break
		}
		select {
		case <-ctx.Done():
			return errChan
		case <-time.After(time.Millisecond * 50):
		case err := <-errChan:
			errChan <- err
			return errChan
		}
	}
	return errChan
}

func (v *VirtualHarness) Stop() {
	v.Cancel(fmt.Errorf("stopping harness"))
	for idx := range v.Central.Nodes {
		if v.States[idx] != nil {
			core.Stop(v.States[idx])
		}
	}
}

// StateOf returns the running state of the named node.
func (v *VirtualHarness) StateOf(name string) *state.State {
	for idx, cfg := range v.Central.Nodes {
		if cfg.Name == name {
			return v.States[idx]
		}
	}
	panic(fmt.Sprintf("no node named %s", name))
}

// Query runs fn on the node's main loop and returns its result.
func Query[T any](t *testing.T, s *state.State, fn func(*state.State) T) T {
	t.Helper()
	res, err := s.DispatchWait(func(st *state.State) (any, error) {
		return fn(st), nil
	})
	require.NoError(t, err)
	return res.(T)
}

// InMemoryNetwork delivers every broadcast frame along the configured
// outbound links of the sender, with per-link loss, latency and jitter.
type InMemoryNetwork struct {
	sync.Mutex
	cfg        *VirtualHarness
	transports map[state.NodeId]*NodeTransport
}

func (i *InMemoryNetwork) Attach(node state.NodeId) *NodeTransport {
	i.Lock()
	defer i.Unlock()
	trans := &NodeTransport{net: i, node: node}
	i.transports[node] = trans
	return trans
}

func (i *InMemoryNetwork) broadcast(from state.NodeId, pkt []byte) {
	for _, link := range i.cfg.Links {
		if link.From == from {
			i.simulate(link, pkt)
		}
	}
}

func (i *InMemoryNetwork) simulate(link *VirtualLink, pkt []byte) {
	if rand.Float64() < link.PacketLoss {
		return // dropped by the radio
	}
	deliver := func() {
		i.Lock()
		to := i.transports[link.To]
		i.Unlock()
		if to != nil {
			to.deliver(pkt, link.Iface())
		}
	}
	if link.Latency == 0 {
		deliver()
		return
	}
	simJitter := rand.Float64() * float64(link.Jitter.Nanoseconds())
	simLat := link.Latency + time.Duration(simJitter)
	go func() {
		select {
		case <-i.cfg.Context.Done():
		case <-time.After(simLat):
			deliver()
		}
	}()
}

// NodeTransport is one node's view of the in-memory network.
type NodeTransport struct {
	net    *InMemoryNetwork
	node   state.NodeId
	closed atomic.Bool

	mu   sync.RWMutex
	recv func(pkt []byte, iface string)
}

func (t *NodeTransport) Broadcast(pkt []byte) (int, error) {
	if t.closed.Load() {
		return 0, net.ErrClosed
	}
	frame := make([]byte, len(pkt))
	copy(frame, pkt)
	t.net.broadcast(t.node, frame)
	return len(pkt), nil
}

func (t *NodeTransport) SetReceiver(fun func(pkt []byte, iface string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recv = fun
}

func (t *NodeTransport) Close() error {
	t.closed.Store(true)
	return nil
}

func (t *NodeTransport) deliver(pkt []byte, iface string) {
	if t.closed.Load() {
		return
	}
	t.mu.RLock()
	recv := t.recv
	t.mu.RUnlock()
	if recv != nil {
		recv(pkt, iface)
	}
}
