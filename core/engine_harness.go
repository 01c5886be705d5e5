//go:build engine_test

package core

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/gsqr/embedding"
	"github.com/encodeous/gsqr/mock"
	"github.com/encodeous/gsqr/protocol"
	"github.com/encodeous/gsqr/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Event EngineEvent
	Args  []any
}

func MakeEvent(event EngineEvent, args ...any) HarnessEvent {
	return HarnessEvent{
		Event: event,
		Args:  args,
	}
}

type HarnessEvents []HarnessEvent

func (e HarnessEvents) String() string {
	out := make([]string, 0, len(e))
	for _, event := range e {
		cur := event.Event.String()
		for _, arg := range event.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

func (e HarnessEvents) contains(event EngineEvent, args ...any) bool {
	for _, ev := range e {
		if ev.Event != event {
			continue
		}
		if len(ev.Args) < len(args) {
			continue
		}
		match := true
		for i, arg := range args {
			if !cmp.Equal(ev.Args[i], arg) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, event EngineEvent, args ...any) {
	if e.contains(event, args...) {
		return
	}
	t.Fatal("Expected event not found: ", event, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, event EngineEvent, args ...any) {
	if e.contains(event, args...) {
		t.Fatal("Unexpected event found: ", event, " with args: ", args, " in ", e)
	}
}

// EngineHarness records decision events instead of logging them.
type EngineHarness struct {
	events []HarnessEvent
}

func (h *EngineHarness) Log(event EngineEvent, desc string, args ...any) {
	h.events = append(h.events, MakeEvent(event, args...))
}

func (h *EngineHarness) GetEvents() HarnessEvents {
	x := slices.Clone(h.events)
	h.events = h.events[:0]
	return x
}

// Unit returns the basis vector along axis i, handy for building stores
// whose Q values are exact by construction.
func Unit(i int) []float64 {
	vec := make([]float64, state.EmbeddingDim)
	vec[i] = 1
	return vec
}

// Scaled returns Unit(i) scaled by v.
func Scaled(i int, v float64) []float64 {
	vec := make([]float64, state.EmbeddingDim)
	vec[i] = v
	return vec
}

func MustSet(t *testing.T, store *embedding.Store, id state.NodeId, vec []float64, bias float64) {
	t.Helper()
	if err := store.Set(id, vec, bias); err != nil {
		t.Fatal(err)
	}
}

// nodeFixture assembles one node's modules over the manual clock, manual
// scheduler and in-memory transport, with dispatches drained by the test
// itself.
type nodeFixture struct {
	t        *testing.T
	s        *state.State
	clock    *mock.ManualClock
	sched    *mock.ManualScheduler
	net      *mock.MemTransport
	dispatch chan func(*state.State) error
	cancel   context.CancelCauseFunc
	engine   *Engine
	beacon   *Beacon
}

func newNodeFixture(t *testing.T, id state.NodeId) *nodeFixture {
	t.Helper()
	central, locals := mock.MockCfg()
	clock := mock.NewManualClock(time.Unix(1700000000, 0))
	sched := mock.NewManualScheduler(clock)
	net := &mock.MemTransport{}
	dispatch := make(chan func(*state.State) error, 128)
	ctx, cancel := context.WithCancelCause(context.Background())

	s := &state.State{
		Modules:    make(map[string]state.GsModule),
		Neighbours: state.NewNeighbourTable(),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			CentralCfg:      central,
			LocalCfg:        locals[id-1],
			Log:             slog.New(slog.DiscardHandler),
			Clock:           clock,
			Net:             net,
		},
	}
	s.Sched = sched

	f := &nodeFixture{
		t:        t,
		s:        s,
		clock:    clock,
		sched:    sched,
		net:      net,
		dispatch: dispatch,
		cancel:   cancel,
		engine:   &Engine{Store: embedding.NewStoreSeeded(42)},
		beacon:   &Beacon{},
	}
	for _, module := range []state.GsModule{f.engine, f.beacon} {
		s.Modules[fmt.Sprintf("%T", module)] = module
		if err := module.Init(s); err != nil {
			t.Fatal(err)
		}
	}
	f.drain()
	t.Cleanup(func() {
		cancel(context.Canceled)
		_ = f.beacon.Cleanup(s)
		_ = f.engine.Cleanup(s)
	})
	return f
}

// drain runs every queued dispatch on the caller's goroutine.
func (f *nodeFixture) drain() {
	for {
		select {
		case fun := <-f.dispatch:
			if err := fun(f.s); err != nil {
				f.t.Fatal(err)
			}
		default:
			return
		}
	}
}

// tick advances virtual time and fires everything that came due.
func (f *nodeFixture) tick(d time.Duration) {
	f.clock.Advance(d)
	if _, err := f.sched.RunDue(f.s); err != nil {
		f.t.Fatal(err)
	}
	f.drain()
}

// hear delivers one encoded beacon to the node as if it arrived off the air.
func (f *nodeFixture) hear(hello protocol.Beacon, iface string) {
	f.net.Deliver(hello.Encode(nil), iface)
	f.drain()
}

func helloFrom(id state.NodeId, ts float64) protocol.Beacon {
	return protocol.Beacon{
		Sender:         id,
		Timestamp:      ts,
		MeanETX:        1.5,
		ResidualEnergy: 95,
		QueueLength:    0.1,
	}
}
