package state

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

// NodeId is the node identity carried on the wire, a plain 32-bit unsigned
// integer. Human-readable names exist only in configuration and logs.
type NodeId uint32

func (n NodeId) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

type NodeCfg struct {
	Name string
	Id   NodeId
}

// LearningCfg holds the temporal-difference update parameters.
type LearningCfg struct {
	Alpha  float64 `yaml:"alpha"`  // learning rate, (0, 1]
	Gamma  float64 `yaml:"gamma"`  // discount factor, [0, 1)
	Lambda float64 `yaml:"lambda"` // energy weight, [0, 1]
}

// MetricsCfg holds the link metrics advertised in every beacon. These are
// configured statics; nothing measures them live yet.
type MetricsCfg struct {
	MeanETX        float64 `yaml:"mean_etx"`
	ResidualEnergy float64 `yaml:"residual_energy"`
	QueueLength    float64 `yaml:"queue_length"`
}

type CentralCfg struct {
	Nodes          []NodeCfg
	Learning       LearningCfg   `yaml:"learning"`
	BeaconInterval time.Duration `yaml:"beacon_interval,omitempty"`
	// NeighbourExpiry evicts neighbours not heard from for this long,
	// checked on every beacon tick. Zero disables eviction entirely, which
	// is the default: the protocol never forgets a neighbour on its own.
	NeighbourExpiry time.Duration `yaml:"neighbour_expiry,omitempty"`
	Metrics         MetricsCfg    `yaml:"metrics,omitempty"`
}

// LocalCfg represents local node-level configuration
type LocalCfg struct {
	Id            NodeId
	Port          uint16 `yaml:",omitempty"`               // beacon UDP port
	Group         string `yaml:",omitempty"`               // beacon multicast group
	InterfaceName string `yaml:"interface_name,omitempty"` // bind the beacon transport to this interface
	EmbeddingPath string `yaml:"embedding_path,omitempty"` // if empty, embeddings are generated lazily
	LogPath       string `yaml:"log_path,omitempty"`       // if not empty, gsqr will also write logs to this file
	SockPath      string `yaml:"sock_path,omitempty"`      // unix socket for the inspect surface
}

// ExpandCentralConfig fills in defaults for everything the operator left
// zero. Runs before validation.
func ExpandCentralConfig(cfg *CentralCfg) {
	if cfg.Learning.Alpha == 0 {
		cfg.Learning.Alpha = DefaultAlpha
	}
	if cfg.Learning.Gamma == 0 {
		cfg.Learning.Gamma = DefaultGamma
	}
	if cfg.Learning.Lambda == 0 {
		cfg.Learning.Lambda = DefaultLambda
	}
	if cfg.BeaconInterval == 0 {
		cfg.BeaconInterval = DefaultBeaconInterval
	}
	if cfg.Metrics == (MetricsCfg{}) {
		cfg.Metrics = MetricsCfg{
			MeanETX:        DefaultMeanETX,
			ResidualEnergy: DefaultResidualEnergy,
			QueueLength:    DefaultQueueLength,
		}
	}
}

func ExpandLocalConfig(cfg *LocalCfg) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
}

func (c *CentralCfg) TryGetNode(node NodeId) *NodeCfg {
	idx := slices.IndexFunc(c.Nodes, func(cfg NodeCfg) bool {
		return cfg.Id == node
	})
	if idx == -1 {
		return nil
	}
	return &c.Nodes[idx]
}

func (c *CentralCfg) GetNode(node NodeId) NodeCfg {
	val := c.TryGetNode(node)
	if val == nil {
		panic("node " + node.String() + " not found")
	}
	return *val
}

func (c *CentralCfg) IsNode(node NodeId) bool {
	return c.TryGetNode(node) != nil
}

func (c *CentralCfg) FindNodeBy(name string) *NodeCfg {
	idx := slices.IndexFunc(c.Nodes, func(cfg NodeCfg) bool {
		return cfg.Name == name
	})
	if idx == -1 {
		return nil
	}
	return &c.Nodes[idx]
}

// NodeName resolves an id to its configured name, falling back to a numeric
// form for ids learned off the wire that no config knows about.
func (c *CentralCfg) NodeName(node NodeId) string {
	if cfg := c.TryGetNode(node); cfg != nil {
		return cfg.Name
	}
	return fmt.Sprintf("node-%d", node)
}

// Socket returns the inspection socket path, defaulting to a per-node file
// under the system temp directory.
func (c *LocalCfg) Socket() string {
	if c.SockPath != "" {
		return c.SockPath
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("gsqr-%d.sock", c.Id))
}
