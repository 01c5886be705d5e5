package protocol

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeaconRoundTrip(t *testing.T) {
	in := Beacon{
		Sender:         42,
		Timestamp:      1723545601.25,
		MeanETX:        1.5,
		ResidualEnergy: 95.0,
		QueueLength:    0.1,
	}
	pkt := in.Encode(nil)
	assert.Len(t, pkt, BeaconSize)

	var out Beacon
	assert.NoError(t, out.Decode(pkt))
	assert.Equal(t, in, out)
}

func TestBeaconLayout(t *testing.T) {
	in := Beacon{
		Sender:         0x01020304,
		Timestamp:      2.0,
		MeanETX:        1.5,
		ResidualEnergy: math.Copysign(0, -1),
		QueueLength:    math.Inf(1),
	}
	pkt := in.Encode(nil)

	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, pkt[0:4])
	assert.Equal(t, math.Float64bits(2.0), binary.BigEndian.Uint64(pkt[4:12]))
	assert.Equal(t, math.Float64bits(1.5), binary.BigEndian.Uint64(pkt[12:20]))
	// the sign of a negative zero survives the trip
	assert.Equal(t, uint64(1)<<63, binary.BigEndian.Uint64(pkt[20:28]))
	assert.Equal(t, math.Float64bits(math.Inf(1)), binary.BigEndian.Uint64(pkt[28:36]))
}

func TestBeaconDecodeTruncated(t *testing.T) {
	var b Beacon
	assert.ErrorIs(t, b.Decode(nil), ErrTruncated)
	assert.ErrorIs(t, b.Decode(make([]byte, BeaconSize-1)), ErrTruncated)
}

func TestBeaconDecodeIgnoresTrailing(t *testing.T) {
	in := Beacon{Sender: 7, Timestamp: 1.0, MeanETX: 1.5, ResidualEnergy: 95, QueueLength: 0.1}
	pkt := append(in.Encode(nil), 0xde, 0xad, 0xbe, 0xef)

	var out Beacon
	assert.NoError(t, out.Decode(pkt))
	assert.Equal(t, in, out)
}
