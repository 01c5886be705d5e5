package state

import (
	"time"
)

// TimerHandle is a cancellable pending timer. Cancel reports whether the
// timer was stopped before its function was dispatched.
type TimerHandle interface {
	Cancel() bool
}

// Scheduler runs a function on the main loop after a delay. The production
// scheduler is the Env itself; tests substitute a hand-driven one.
type Scheduler interface {
	ScheduleAfter(delay time.Duration, fun func(s *State) error) TimerHandle
}

// Clock is the time source for beacon timestamps and neighbour bookkeeping.
type Clock interface {
	Now() time.Time
}

// Transport carries beacon packets. Broadcast sends one packet to every
// node in range and returns the number of bytes written. SetReceiver
// registers the inbound handler along with the interface the packet
// arrived on; it may be called from any goroutine.
type Transport interface {
	Broadcast(pkt []byte) (int, error)
	SetReceiver(fun func(pkt []byte, iface string))
	Close() error
}

type sysClock struct{}

func (sysClock) Now() time.Time {
	return time.Now()
}

func SysClock() Clock {
	return sysClock{}
}

// Seconds renders a wall-clock instant as fractional seconds since the
// unix epoch, the unit beacon timestamps use on the wire.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
