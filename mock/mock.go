package mock

import (
	"time"

	"github.com/encodeous/gsqr/state"
)

// MockCfg builds the five node topology most tests run on. Beacons run at
// a short cadence so realtime tests converge quickly.
func MockCfg() (state.CentralCfg, []state.LocalCfg) {
	names := []string{
		"bob",
		"jeb",
		"kat",
		"eve",
		"ada",
	}
	central := state.CentralCfg{
		Nodes: make([]state.NodeCfg, 0),
	}
	locals := make([]state.LocalCfg, 0)
	for i, name := range names {
		id := state.NodeId(i + 1)
		central.Nodes = append(central.Nodes, state.NodeCfg{
			Name: name,
			Id:   id,
		})
		locals = append(locals, state.LocalCfg{Id: id})
	}
	state.ExpandCentralConfig(&central)
	central.BeaconInterval = 250 * time.Millisecond
	return central, locals
}
