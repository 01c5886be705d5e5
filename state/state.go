package state

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type GsModule interface {
	Init(s *State) error
	Cleanup(s *State) error
}

// State access must be done only on a single Goroutine
type State struct {
	*Env
	Modules    map[string]GsModule
	Neighbours *NeighbourTable
}

// Env can be read from any Goroutine
type Env struct {
	DispatchChannel chan<- func(s *State) error
	CentralCfg
	LocalCfg
	Context  context.Context
	Cancel   context.CancelCauseFunc
	Log      *slog.Logger
	Clock    Clock
	Net      Transport
	Sched    Scheduler
	Started  atomic.Bool
	Stopping atomic.Bool
	Updating atomic.Bool
}

// Name is the configured name of the local node.
func (e *Env) Name() string {
	return e.CentralCfg.NodeName(e.LocalCfg.Id)
}
