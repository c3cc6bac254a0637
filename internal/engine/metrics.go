package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	metricOrdersAttempted = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_attempted_total", Help: "Orders the engine tried to place"})
	metricOrdersPlaced    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_placed_total", Help: "Orders successfully handed to the broker"})
	metricOrdersFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_failed_total", Help: "Orders that failed at the broker"})
	metricOrdersBlocked   = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_orders_blocked_total", Help: "Orders rejected by the risk gate"})
	metricExitsExecuted   = prometheus.NewCounter(prometheus.CounterOpts{Name: "bot_exits_executed_total", Help: "Positions closed or trimmed by the exit scanner"})
	metricPortfolioHeat   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "bot_portfolio_heat", Help: "Invested fraction of equity at last cycle"})
)

func init() {
	prometheus.MustRegister(
		metricOrdersAttempted, metricOrdersPlaced, metricOrdersFailed,
		metricOrdersBlocked, metricExitsExecuted, metricPortfolioHeat,
	)
}
