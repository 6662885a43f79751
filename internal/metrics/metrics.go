package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ticks_total", Help: "Count of market ticks ingested"},
		[]string{"symbol"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Ledger mutations issued by the strategy driver"},
		[]string{"asset", "side"},
	)
	TriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "triggers_total", Help: "Automatic position closes by trigger kind"},
		[]string{"asset", "kind"},
	)
	AccountValue = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "account_value", Help: "Total simulated account value in basic currency"},
	)
)

func init() {
	prometheus.MustRegister(TicksTotal, OrdersTotal, TriggersTotal, AccountValue)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
