// Package metrics exposes Prometheus counters on a dedicated listener so
// the API port stays free of scrape traffic.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tukangin_chat_messages_appended_total",
		Help: "Chat messages committed to storage.",
	})

	NotificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tukangin_notifications_delivered_total",
		Help: "Notification feed entries written.",
	})

	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tukangin_booking_transitions_total",
		Help: "Service request transitions by resulting status.",
	}, []string{"status"})

	WebsocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tukangin_websocket_connections",
		Help: "Currently open websocket connections.",
	})
)

// Serve starts the scrape endpoint on its own listener. Blocks, so run it
// in a goroutine.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	log.Printf("Metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics listener stopped: %v", err)
	}
}
