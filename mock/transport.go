package mock

import (
	"sync"
)

// MemTransport records broadcast frames and lets a test hand-deliver
// inbound ones. Zero value is ready to use.
type MemTransport struct {
	mu     sync.Mutex
	recv   func(pkt []byte, iface string)
	sent   [][]byte
	closed bool

	// FailNext makes the next Broadcast return this error once.
	FailNext error
	// ZeroNext makes the next Broadcast report a zero-byte write once.
	ZeroNext bool
}

func (t *MemTransport) Broadcast(pkt []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailNext != nil {
		err := t.FailNext
		t.FailNext = nil
		return 0, err
	}
	if t.ZeroNext {
		t.ZeroNext = false
		return 0, nil
	}
	frame := make([]byte, len(pkt))
	copy(frame, pkt)
	t.sent = append(t.sent, frame)
	return len(pkt), nil
}

func (t *MemTransport) SetReceiver(fun func(pkt []byte, iface string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recv = fun
}

func (t *MemTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Deliver feeds one inbound frame to the registered receiver.
func (t *MemTransport) Deliver(pkt []byte, iface string) {
	t.mu.Lock()
	recv := t.recv
	t.mu.Unlock()
	if recv != nil {
		recv(pkt, iface)
	}
}

// SentFrames returns a copy of everything broadcast so far.
func (t *MemTransport) SentFrames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

func (t *MemTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
