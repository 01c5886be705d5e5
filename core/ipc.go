package core

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/encodeous/gsqr/state"
)

// Ipc exposes a read-only inspection surface over a unix socket, speaking a
// line-oriented protocol: the client sends "get=gsqr" and a command, the
// response is text terminated by a NUL byte.
type Ipc struct {
	*state.State
	listener net.Listener
	path     string
}

func (i *Ipc) Init(s *state.State) error {
	s.Log.Debug("init ipc")
	i.State = s
	i.path = s.LocalCfg.Socket()
	// a previous unclean shutdown may have left the socket behind
	_ = os.Remove(i.path)
	ln, err := net.Listen("unix", i.path)
	if err != nil {
		return fmt.Errorf("listening on ipc socket: %w", err)
	}
	i.listener = ln
	go i.acceptLoop(s)
	return nil
}

func (i *Ipc) Cleanup(s *state.State) error {
	if i.listener != nil {
		i.listener.Close()
	}
	_ = os.Remove(i.path)
	i.State = nil
	return nil
}

func (i *Ipc) acceptLoop(s *state.State) {
	for s.Context.Err() == nil {
		conn, err := i.listener.Accept()
		if err != nil {
			if s.Context.Err() == nil {
				s.Log.Debug("ipc accept failed", "err", err)
			}
			return
		}
		go func() {
			defer conn.Close()
			if err := handleIPCConn(s, conn); err != nil && err != io.EOF {
				s.Log.Debug("ipc session ended", "err", err)
			}
		}()
	}
}

func handleIPCConn(s *state.State, conn net.Conn) error {
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))
	hdr, err := rw.ReadString('\n')
	if err != nil {
		return err
	}
	if hdr != "get=gsqr\n" {
		return fmt.Errorf("unexpected ipc header %q", hdr)
	}
	return HandleGsqrIPCGet(s, rw)
}

func HandleGsqrIPCGet(s *state.State, rw *bufio.ReadWriter) error {
	cmd, err := rw.ReadString('\n')
	if err != nil {
		return err
	}
	switch cmd {
	case "inspect\n":
		res, err := s.DispatchWait(func(s *state.State) (any, error) {
			return renderInspect(s), nil
		})
		if err != nil {
			return err
		}
		_, err = rw.WriteString(res.(string))
		if err != nil {
			return err
		}
		return rw.Flush()
	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
}

func renderInspect(s *state.State) string {
	e := Get[*Engine](s)
	b := Get[*Beacon](s)
	now := s.Clock.Now()
	sb := strings.Builder{}

	sb.WriteString(fmt.Sprintf("Node: %s (%d)\n", s.Name(), s.LocalCfg.Id))
	sb.WriteString(fmt.Sprintf("Beacons: sent=%d (%d bytes), received=%d (%d bytes)\n",
		b.PacketsSent, b.BytesSent, b.PacketsReceived, b.BytesReceived))

	sb.WriteString("\nNeighbours:\n")
	if s.Neighbours.Len() == 0 {
		sb.WriteString(" (none)\n")
	}
	for _, id := range s.Neighbours.Ids() {
		n, _ := s.Neighbours.Get(id)
		sb.WriteString(fmt.Sprintf(" - %s\n", s.CentralCfg.NodeName(id)))
		sb.WriteString(fmt.Sprintf("   ETX: %.2f, Energy: %.2f, Queue: %.2f\n",
			n.MeanETX, n.ResidualEnergy, n.QueueLength))
		sb.WriteString(fmt.Sprintf("   LastSeen: %.2fs ago via %s, beacons %d\n",
			now.Sub(n.HeardAt).Seconds(), n.Iface, n.Beacons))
	}

	sb.WriteString("\nRoutes:\n")
	rt := make([]string, 0)
	for _, node := range s.CentralCfg.Nodes {
		if node.Id == s.LocalCfg.Id {
			continue
		}
		nh, err := e.NextHop(s.LocalCfg.Id, node.Id)
		if err != nil {
			rt = append(rt, fmt.Sprintf(" - to %s: unreachable", node.Name))
			continue
		}
		rt = append(rt, fmt.Sprintf(" - to %s: via %s, q=%.4f",
			node.Name, s.CentralCfg.NodeName(nh), ComputeQ(e.Store, node.Id, nh)))
	}
	if len(rt) == 0 {
		rt = append(rt, " (none)")
	}
	slices.Sort(rt)
	sb.WriteString(strings.Join(rt, "\n") + "\n")

	sb.WriteString("\nEmbeddings:\n")
	sb.WriteString(fmt.Sprintf(" Nodes: %d, Memory: %.2f KB\n", e.Store.Len(), e.Store.MemoryKB()))
	for _, id := range e.Store.Ids() {
		sb.WriteString(fmt.Sprintf(" - %s: bias=%.4f\n", s.CentralCfg.NodeName(id), e.Store.Bias(id)))
	}

	sb.WriteRune(0)
	return sb.String()
}

// IPCGet connects to a running node's socket and runs inspect.
func IPCGet(path string) (string, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	_, err = rw.WriteString("get=gsqr\n")
	if err != nil {
		return "", err
	}

	_, err = rw.WriteString("inspect\n")
	if err != nil {
		return "", err
	}
	err = rw.Flush()
	if err != nil {
		return "", err
	}

	res, err := rw.ReadString(0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSuffix(res, "\x00"), nil
}
