package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency     = metric.NewHistogram("1m1s")
	SelectLatency       = metric.NewHistogram("10s1s")
	TDError             = metric.NewHistogram("1m1s")
	BeaconsPerSecond    = metric.NewCounter("10s1s")
	RecvBeaconPerSecond = metric.NewCounter("10s1s")
	SentBytesPerSecond  = metric.NewCounter("10s1s")
	RecvBytesPerSecond  = metric.NewCounter("10s1s")
	AcksPerSecond       = metric.NewCounter("10s1s")
	DroppedFrames       = metric.NewCounter("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("gsqr:Beacons/s", BeaconsPerSecond)
	expvar.Publish("gsqr:RecvBeacon/s", RecvBeaconPerSecond)

	expvar.Publish("gsqr:SentBytes/s", SentBytesPerSecond)
	expvar.Publish("gsqr:RecvBytes/s", RecvBytesPerSecond)
	expvar.Publish("gsqr:Acks/s", AcksPerSecond)
	expvar.Publish("gsqr:DroppedFrames", DroppedFrames)
	expvar.Publish("gsqr:TDError", TDError)
	expvar.Publish("gsqr:SelectLatency (µs)", SelectLatency)
	expvar.Publish("gsqr:DispatchLatency (µs)", DispatchLatency)
}
