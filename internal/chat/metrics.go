package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	OnlineSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_online_sessions",
		Help: "Number of currently authenticated sessions",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total inbound messages processed by kind",
	}, []string{"kind"})

	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_dispatch_seconds",
		Help:    "Time to dispatch each inbound message kind",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_login_attempts_total",
		Help: "Handshake attempts by result",
	}, []string{"result"})

	DeliveryFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_delivery_failures_total",
		Help: "Sends to a registered session that failed",
	})
)

func init() {
	prometheus.MustRegister(OnlineSessions)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(DispatchDuration)
	prometheus.MustRegister(LoginAttempts)
	prometheus.MustRegister(DeliveryFailures)
}
