// Package metrics exposes Prometheus metrics for the trading pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rustyeddy/srtrader/market"
	"github.com/rustyeddy/srtrader/pipeline"
)

// Metrics holds all Prometheus metrics for the trader. It is a pipeline
// sink and reject observer.
type Metrics struct {
	registry *prometheus.Registry

	CandlesTotal    prometheus.Counter
	RejectedTotal   *prometheus.CounterVec // labels: reason=malformed|mismatch|out_of_order|other
	EventsTotal     *prometheus.CounterVec // labels: kind
	TradesTotal     *prometheus.CounterVec // labels: reason
	WSReconnects    prometheus.Counter
	PublishFailures prometheus.Counter

	RunningPnL    prometheus.Gauge
	CurrentPnL    prometheus.Gauge
	HoldBenchmark prometheus.Gauge
	Position      prometheus.Gauge // -1 short, 0 flat, 1 long
	SupportLevels prometheus.Gauge
	ResistLevels  prometheus.Gauge
	CandleTime    prometheus.Gauge
}

// New registers and returns all metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srtrader_candles_total",
			Help: "Total candles accepted by the pipeline",
		}),
		RejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_rejected_total",
			Help: "Candles or messages refused, by reason",
		}, []string{"reason"}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_events_total",
			Help: "State transitions, by kind",
		}, []string{"kind"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srtrader_trades_total",
			Help: "Closed trades, by exit reason",
		}, []string{"reason"}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srtrader_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srtrader_publish_failures_total",
			Help: "Snapshot publishes that failed",
		}),
		RunningPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_pnl_running",
			Help: "Realized profit and loss of the session",
		}),
		CurrentPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_pnl_current",
			Help: "Unrealized profit and loss of the open position",
		}),
		HoldBenchmark: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_pnl_hold_benchmark",
			Help: "Buy and hold profit since the first candle",
		}),
		Position: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_position",
			Help: "Held side: -1 short, 0 flat, 1 long",
		}),
		SupportLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_support_levels",
			Help: "Support levels in the current window",
		}),
		ResistLevels: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_resistance_levels",
			Help: "Resistance levels in the current window",
		}),
		CandleTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "srtrader_last_candle_timestamp_seconds",
			Help: "Timestamp of the last accepted candle",
		}),
	}

	m.registry.MustRegister(
		m.CandlesTotal,
		m.RejectedTotal,
		m.EventsTotal,
		m.TradesTotal,
		m.WSReconnects,
		m.PublishFailures,
		m.RunningPnL,
		m.CurrentPnL,
		m.HoldBenchmark,
		m.Position,
		m.SupportLevels,
		m.ResistLevels,
		m.CandleTime,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) OnSnapshot(_ context.Context, s pipeline.Snapshot) error {
	m.CandlesTotal.Inc()
	for _, e := range s.Events {
		m.EventsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
	for _, t := range s.Closed {
		m.TradesTotal.WithLabelValues(t.Reason).Inc()
	}
	m.RunningPnL.Set(s.PnL.Running)
	m.CurrentPnL.Set(s.PnL.Current)
	m.HoldBenchmark.Set(s.PnL.HoldBenchmark)
	m.Position.Set(float64(s.Position))
	m.SupportLevels.Set(float64(len(s.Levels.Support)))
	m.ResistLevels.Set(float64(len(s.Levels.Resistance)))
	m.CandleTime.Set(float64(s.Timestamp) / 1000)
	return nil
}

func (m *Metrics) OnReject(_ context.Context, err error) {
	m.RejectedTotal.WithLabelValues(rejectReason(err)).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, market.ErrMalformedCandle):
		return "malformed"
	case errors.Is(err, market.ErrFeedMismatch):
		return "mismatch"
	case errors.Is(err, market.ErrOutOfOrder):
		return "out_of_order"
	default:
		return "other"
	}
}
