// Package metrics exports escrow activity as prometheus collectors fed by
// the event bus.
package metrics

import (
	"net/http"

	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "escrow"

// Collector turns events into prometheus series. It owns its registry so
// several instances can coexist in tests.
type Collector struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	openTrades *prometheus.GaugeVec
	escrowed   *prometheus.GaugeVec
	settled    *prometheus.CounterVec
	fees       *prometheus.CounterVec
	feeBps     prometheus.Gauge
}

// New creates a Collector with Go runtime and process collectors attached.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events emitted by the ledger and registries.",
		}, []string{"type"}),
		openTrades: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_trades",
			Help:      "Trades holding funds in custody.",
		}, []string{"asset"}),
		escrowed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "escrowed_amount",
			Help:      "Amount held in custody across open trades.",
		}, []string{"asset"}),
		settled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_trades_total",
			Help:      "Trades that reached a terminal state.",
		}, []string{"asset", "status", "resolution"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_collected",
			Help:      "Protocol fees paid to the treasury.",
		}, []string{"asset"}),
		feeBps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fee_bps",
			Help:      "Current escrow fee in basis points.",
		}),
	}

	c.registry.MustRegister(
		c.events, c.openTrades, c.escrowed, c.settled, c.fees, c.feeBps,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// SetFee records the starting fee before any FeeUpdated event arrives.
func (c *Collector) SetFee(bps int64) {
	c.feeBps.Set(float64(bps))
}

// Handle updates the collectors for ev.
func (c *Collector) Handle(ev domain.Event) {
	c.events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case domain.EventTradeCreated:
		c.openTrades.WithLabelValues(ev.Asset).Inc()
		c.escrowed.WithLabelValues(ev.Asset).Add(ev.Amount.InexactFloat64())
	case domain.EventTradeCompleted:
		c.close(ev, domain.TradeStatusCompleted)
		c.fees.WithLabelValues(ev.Asset).Add(ev.Fee.InexactFloat64())
	case domain.EventTradeCancelled:
		c.close(ev, domain.TradeStatusCancelled)
	case domain.EventFeeUpdated:
		c.feeBps.Set(float64(ev.FeeBps))
	}
}

func (c *Collector) close(ev domain.Event, status domain.TradeStatus) {
	c.openTrades.WithLabelValues(ev.Asset).Dec()
	c.escrowed.WithLabelValues(ev.Asset).Sub(ev.Amount.InexactFloat64())
	c.settled.WithLabelValues(ev.Asset, string(status), string(ev.Resolution)).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
