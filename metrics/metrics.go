// Package metrics 提供策略引擎的 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器，持有独立 registry 便于测试隔离。
// 所有方法对 nil 接收者安全，未接入监控时可直接传 nil。
type Metrics struct {
	registry *prometheus.Registry

	// 周期指标
	ticksTotal     prometheus.Counter
	tickDuration   prometheus.Histogram
	proposalsTotal prometheus.Counter

	// 订单指标
	ordersPlaced    *prometheus.CounterVec
	ordersCancelled prometheus.Counter
	fills           *prometheus.CounterVec
	skippedMarkets  prometheus.Counter

	// 市场与预算指标
	midPrice   *prometheus.GaugeVec
	buyBudget  *prometheus.GaugeVec
	sellBudget *prometheus.GaugeVec
}

// New 创建指标收集器。
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mmaker"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ticksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Number of strategy clock ticks processed",
		}),
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds",
			Help:    "Wall time spent in a single strategy tick",
			Buckets: prometheus.DefBuckets,
		}),
		proposalsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "proposals_total",
			Help: "Number of per-market quote proposals generated",
		}),
		ordersPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_placed_total",
			Help: "Number of orders placed, by side",
		}, []string{"side"}),
		ordersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_cancelled_total",
			Help: "Number of order cancellations requested",
		}),
		fills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fills_total",
			Help: "Number of order fills, by side",
		}, []string{"side"}),
		skippedMarkets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "skipped_markets_total",
			Help: "Markets skipped in a tick due to missing or degenerate prices",
		}),
		midPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mid_price",
			Help: "Last observed mid price per market",
		}, []string{"market"}),
		buyBudget: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "buy_budget",
			Help: "Remaining buy budget per market, in quote units",
		}, []string{"market"}),
		sellBudget: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "sell_budget",
			Help: "Remaining sell budget per market, in base units",
		}, []string{"market"}),
	}
}

func (m *Metrics) TickProcessed(seconds float64) {
	if m == nil {
		return
	}
	m.ticksTotal.Inc()
	m.tickDuration.Observe(seconds)
}

func (m *Metrics) ProposalsCreated(n int) {
	if m == nil {
		return
	}
	m.proposalsTotal.Add(float64(n))
}

func (m *Metrics) OrderPlaced(side string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(side).Inc()
}

func (m *Metrics) OrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
}

func (m *Metrics) OrderFilled(side string) {
	if m == nil {
		return
	}
	m.fills.WithLabelValues(side).Inc()
}

func (m *Metrics) MarketSkipped() {
	if m == nil {
		return
	}
	m.skippedMarkets.Inc()
}

func (m *Metrics) SetMidPrice(market string, price float64) {
	if m == nil {
		return
	}
	m.midPrice.WithLabelValues(market).Set(price)
}

func (m *Metrics) SetBudgets(market string, buy, sell float64) {
	if m == nil {
		return
	}
	m.buyBudget.WithLabelValues(market).Set(buy)
	m.sellBudget.WithLabelValues(market).Set(sell)
}

// Handler 返回暴露本收集器 registry 的 HTTP handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer 在给定地址上暴露 /metrics。
func (m *Metrics) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
