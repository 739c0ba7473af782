package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "serialplotter"

// Registry holds every collector of the process.
var Registry = prometheus.NewRegistry()

var (
	framesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_received_total",
		Help:      "WebSocket frames read from the plotter UI, by kind.",
	}, []string{"kind"})
	framesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_sent_total",
		Help:      "Text frames sent to the plotter UI, by payload kind.",
	}, []string{"kind"})
	commandsDecoded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_decoded_total",
		Help:      "Commands decoded from the plotter UI, by command name.",
	}, []string{"command"})
	decodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Text frames that could not be decoded into a command.",
	})
	transportErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transport_errors_total",
		Help:      "Failed reads and writes on the WebSocket.",
	})
	sessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "WebSocket sessions accepted.",
	})
	sessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "WebSocket sessions currently open.",
	})

	sessionsActive atomic.Int64
)

func init() {
	Registry.MustRegister(
		framesReceived,
		framesSent,
		commandsDecoded,
		decodeErrors,
		transportErrors,
		sessionsTotal,
		sessionsGauge,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func IncFramesReceived(kind string)  { framesReceived.WithLabelValues(kind).Inc() }
func IncFramesSent(kind string)      { framesSent.WithLabelValues(kind).Inc() }
func IncCommandsDecoded(name string) { commandsDecoded.WithLabelValues(name).Inc() }
func IncDecodeErrors()               { decodeErrors.Inc() }
func IncTransportErrors()            { transportErrors.Inc() }

func IncSessions() {
	sessionsTotal.Inc()
	sessionsGauge.Set(float64(sessionsActive.Add(1)))
}

func DecSessions() {
	sessionsGauge.Set(float64(sessionsActive.Add(-1)))
}

// SessionsActive returns the number of open sessions.
func SessionsActive() int64 { return sessionsActive.Load() }
