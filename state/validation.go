package state

import (
	"fmt"
	"net/netip"
	"os"
	"path"
	"path/filepath"
	"regexp"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func GroupValidator(s string) error {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return err
	}
	if !addr.Is4() || !addr.IsMulticast() {
		return fmt.Errorf("%s is not an ipv4 multicast group", s)
	}
	return nil
}

func LearningConfigValidator(cfg *LearningCfg) error {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return fmt.Errorf("learning.alpha = %v out of range (0, 1]", cfg.Alpha)
	}
	if cfg.Gamma < 0 || cfg.Gamma >= 1 {
		return fmt.Errorf("learning.gamma = %v out of range [0, 1)", cfg.Gamma)
	}
	if cfg.Lambda < 0 || cfg.Lambda > 1 {
		return fmt.Errorf("learning.lambda = %v out of range [0, 1]", cfg.Lambda)
	}
	return nil
}

func CentralConfigValidator(cfg *CentralCfg) error {
	names := make(map[string]bool)
	ids := make(map[NodeId]bool)
	for _, node := range cfg.Nodes {
		err := NameValidator(node.Name)
		if err != nil {
			return err
		}
		if names[node.Name] {
			return fmt.Errorf("duplicate node name: %s", node.Name)
		}
		if ids[node.Id] {
			return fmt.Errorf("duplicate node id: %d", node.Id)
		}
		names[node.Name] = true
		ids[node.Id] = true
	}
	err := LearningConfigValidator(&cfg.Learning)
	if err != nil {
		return err
	}
	if cfg.BeaconInterval <= 0 {
		return fmt.Errorf("beacon_interval = %v must be positive", cfg.BeaconInterval)
	}
	if cfg.NeighbourExpiry < 0 {
		return fmt.Errorf("neighbour_expiry = %v must not be negative", cfg.NeighbourExpiry)
	}
	return nil
}

func LocalConfigValidator(cfg *LocalCfg) error {
	if cfg.Port == 0 {
		return fmt.Errorf("port must not be zero")
	}
	if err := GroupValidator(cfg.Group); err != nil {
		return err
	}
	return nil
}
