package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	OnlineConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pairchat_online_conns",
		Help: "Current online websocket connections (approx).",
	})

	PushOK = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_push_ok_total",
		Help: "Total live pushes queued successfully.",
	})
	PushBackpressure = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_push_backpressure_total",
		Help: "Total pushes dropped because the outbound queue was full.",
	})
	PushOffline = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_push_offline_total",
		Help: "Total pushes skipped because the receiver had no connection.",
	})

	MessagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_messages_created_total",
		Help: "Total messages persisted.",
	})
	UnreadQueries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_unread_queries_total",
		Help: "Total unread-count lookups served.",
	})
	ReadSweeps = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_read_sweeps_total",
		Help: "Total mark-all-read sweeps executed.",
	})
)

func Register() {
	prometheus.MustRegister(
		OnlineConns,
		PushOK, PushBackpressure, PushOffline,
		MessagesCreated, UnreadQueries, ReadSweeps,
	)
}
