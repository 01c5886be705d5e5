// Package impl provides the production transport: beacons ride UDP
// multicast so discovery needs no prior addressing.
package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/encodeous/gsqr/state"
	"golang.org/x/net/ipv4"
)

type MulticastTransport struct {
	log    *slog.Logger
	conn   *net.UDPConn
	pc     *ipv4.PacketConn
	dst    *net.UDPAddr
	closed atomic.Bool

	mu   sync.RWMutex
	recv func(pkt []byte, iface string)
}

// NewMulticastTransport binds the beacon port, joins the configured group
// and starts reading. With no interface_name configured, the group is
// joined on every up, multicast-capable interface.
func NewMulticastTransport(cfg state.LocalCfg, log *slog.Logger) (*MulticastTransport, error) {
	group, err := netip.ParseAddr(cfg.Group)
	if err != nil {
		return nil, fmt.Errorf("parsing beacon group: %w", err)
	}

	lc := net.ListenConfig{Control: reuseControl}
	pconn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("binding beacon socket: %w", err)
	}
	conn := pconn.(*net.UDPConn)
	pc := ipv4.NewPacketConn(conn)

	ifaces, err := multicastInterfaces(cfg.InterfaceName)
	if err != nil {
		conn.Close()
		return nil, err
	}
	groupAddr := &net.UDPAddr{IP: group.AsSlice()}
	joined := 0
	for _, ifi := range ifaces {
		if err := pc.JoinGroup(ifi, groupAddr); err != nil {
			log.Warn("could not join beacon group", "iface", ifi.Name, "err", err)
			continue
		}
		joined++
	}
	if joined == 0 {
		conn.Close()
		return nil, fmt.Errorf("could not join %s on any interface", cfg.Group)
	}
	if cfg.InterfaceName != "" {
		if err := pc.SetMulticastInterface(ifaces[0]); err != nil {
			conn.Close()
			return nil, fmt.Errorf("selecting send interface: %w", err)
		}
	}
	// nodes sharing a host must hear each other; our own echoes are
	// filtered by sender id further up
	_ = pc.SetMulticastLoopback(true)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		log.Debug("interface tagging unavailable on this platform", "err", err)
	}

	u := &MulticastTransport{
		log:  log,
		conn: conn,
		pc:   pc,
		dst:  &net.UDPAddr{IP: group.AsSlice(), Port: int(cfg.Port)},
	}
	go u.readLoop()
	return u, nil
}

func multicastInterfaces(name string) ([]*net.Interface, error) {
	if name != "" {
		ifi, err := net.InterfaceByName(name)
		if err != nil {
			return nil, fmt.Errorf("looking up interface %s: %w", name, err)
		}
		return []*net.Interface{ifi}, nil
	}
	all, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var out []*net.Interface
	for i := range all {
		ifi := &all[i]
		if ifi.Flags&net.FlagUp != 0 && ifi.Flags&net.FlagMulticast != 0 {
			out = append(out, ifi)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no up multicast-capable interfaces")
	}
	return out, nil
}

func (u *MulticastTransport) readLoop() {
	buf := make([]byte, state.ReadBufferSize)
	for {
		n, cm, _, err := u.pc.ReadFrom(buf)
		if err != nil {
			if u.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			u.log.Warn("beacon socket read failed", "err", err)
			continue
		}
		iface := ""
		if cm != nil && cm.IfIndex > 0 {
			if ifi, err := net.InterfaceByIndex(cm.IfIndex); err == nil {
				iface = ifi.Name
			}
		}
		u.mu.RLock()
		recv := u.recv
		u.mu.RUnlock()
		if recv != nil {
			recv(buf[:n], iface)
		}
	}
}

func (u *MulticastTransport) Broadcast(pkt []byte) (int, error) {
	return u.pc.WriteTo(pkt, nil, u.dst)
}

func (u *MulticastTransport) SetReceiver(fun func(pkt []byte, iface string)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.recv = fun
}

func (u *MulticastTransport) Close() error {
	if u.closed.Swap(true) {
		return nil
	}
	return u.conn.Close()
}
