// Package metrics 提供 Prometheus helper，包含风险引擎的 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/riskanalytics/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 风控检查计数
	RiskChecksTotal prometheus.Counter
	// 风控违规计数
	RiskViolationsTotal *prometheus.CounterVec
	// 风控检查耗时
	RiskCheckDuration prometheus.Histogram
	// 当前组合 VaR（美元）
	PortfolioVaR prometheus.Gauge
	// 当前组合总敞口（美元）
	GrossExposure prometheus.Gauge
	// 活跃持仓数
	PositionsActive prometheus.Gauge

	// 行情消息计数
	FeedMessagesTotal prometheus.Counter
	// 行情连接错误计数
	FeedErrorsTotal prometheus.Counter
	// 收益率样本计数
	ReturnsIngestedTotal prometheus.Counter
	// 相关性更新计数
	CorrelationUpdatesTotal prometheus.Counter

	// 交易事件消费计数
	TradeEventsTotal prometheus.Counter
	// 时序记录发布计数
	TimeseriesRecordsTotal prometheus.Counter
	// 时序记录丢弃计数
	TimeseriesDroppedTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		RiskChecksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "risk_checks_total",
			Help:      "Total risk limit checks performed",
		}),
		RiskViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "risk_violations_total",
			Help:      "Total risk limit violations by reason",
		}, []string{"reason"}),
		RiskCheckDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "risk_check_duration_seconds",
			Help:      "Risk check duration in seconds",
			Buckets:   []float64{1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 0.1},
		}),
		PortfolioVaR: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "portfolio_var_dollars",
			Help:      "Current portfolio value-at-risk in dollars",
		}),
		GrossExposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "gross_exposure_dollars",
			Help:      "Current gross market value of the book in dollars",
		}),
		PositionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "positions_active",
			Help:      "Number of tracked positions",
		}),

		FeedMessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "feed_messages_total",
			Help:      "Total market data messages received",
		}),
		FeedErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "feed_errors_total",
			Help:      "Total market data connection errors",
		}),
		ReturnsIngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "returns_ingested_total",
			Help:      "Total return samples ingested",
		}),
		CorrelationUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "correlation_updates_total",
			Help:      "Total correlation pair updates",
		}),

		TradeEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "trade_events_total",
			Help:      "Total trade events consumed",
		}),
		TimeseriesRecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "timeseries_records_total",
			Help:      "Total time-series records published",
		}),
		TimeseriesDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trading",
			Subsystem: serviceName,
			Name:      "timeseries_dropped_total",
			Help:      "Total time-series records dropped due to full queue",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RiskChecksTotal,
		m.RiskViolationsTotal,
		m.RiskCheckDuration,
		m.PortfolioVaR,
		m.GrossExposure,
		m.PositionsActive,
		m.FeedMessagesTotal,
		m.FeedErrorsTotal,
		m.ReturnsIngestedTotal,
		m.CorrelationUpdatesTotal,
		m.TradeEventsTotal,
		m.TimeseriesRecordsTotal,
		m.TimeseriesDroppedTotal,
	}

	for _, collector := range collectors {
		if err := prometheus.DefaultRegisterer.Register(collector); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
