// Package protocol defines the fixed-layout beacon frame exchanged between
// nodes. Every field is big-endian; floats travel as their IEEE-754 bit
// patterns so a value round-trips exactly.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/encodeous/gsqr/state"
)

// BeaconSize is the exact length of an encoded beacon:
// a 4-byte node id followed by four 8-byte floats.
const BeaconSize = 36

var ErrTruncated = errors.New("beacon frame truncated")

// Beacon is one hello advertisement. Timestamp is the sender's clock in
// fractional seconds since the unix epoch.
type Beacon struct {
	Sender         state.NodeId
	Timestamp      float64
	MeanETX        float64
	ResidualEnergy float64
	QueueLength    float64
}

// Encode appends the wire form of b to buf and returns the extended slice.
func (b *Beacon) Encode(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(b.Sender))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(b.Timestamp))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(b.MeanETX))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(b.ResidualEnergy))
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(b.QueueLength))
	return buf
}

// Decode parses one beacon from the front of pkt. Anything shorter than
// BeaconSize fails closed; trailing bytes are ignored.
func (b *Beacon) Decode(pkt []byte) error {
	if len(pkt) < BeaconSize {
		return fmt.Errorf("%w: got %d bytes, need %d", ErrTruncated, len(pkt), BeaconSize)
	}
	b.Sender = state.NodeId(binary.BigEndian.Uint32(pkt[0:4]))
	b.Timestamp = math.Float64frombits(binary.BigEndian.Uint64(pkt[4:12]))
	b.MeanETX = math.Float64frombits(binary.BigEndian.Uint64(pkt[12:20]))
	b.ResidualEnergy = math.Float64frombits(binary.BigEndian.Uint64(pkt[20:28]))
	b.QueueLength = math.Float64frombits(binary.BigEndian.Uint64(pkt[28:36]))
	return nil
}
