package state

import "time"

const (
	// EmbeddingDim is the fixed width of every node embedding. The wire
	// format, the store and the learning update all assume exactly this many
	// components, so it is not runtime-configurable.
	EmbeddingDim = 16
)

var (
	// learning defaults
	DefaultAlpha  = 0.1
	DefaultGamma  = 0.9
	DefaultLambda = 0.01

	// beacon defaults
	DefaultBeaconInterval = time.Second * 2
	// BeaconStartupDelay delays the first beacon so the transport has time to
	// come up before we start chattering.
	BeaconStartupDelay = time.Second * 1

	// advertised link metric statics, used when no live source is wired in
	DefaultMeanETX        = 1.5
	DefaultResidualEnergy = 95.0
	DefaultQueueLength    = 0.1

	// MissWarnTTL rate-limits "missing embedding" warnings per node id.
	MissWarnTTL = time.Second * 30

	// default port / multicast group for the UDP beacon transport
	DefaultPort  = uint16(57175)
	DefaultGroup = "239.57.17.5"

	// ReadBufferSize is sized well above the fixed beacon record so decode
	// can fail closed on oversized garbage instead of truncating silently.
	ReadBufferSize = 512
)

// debug toggles, bound to CLI flags
var (
	DBG_trace        = false
	DBG_pprof        = false
	DBG_log_beacon   = false
	DBG_log_learning = false
)
