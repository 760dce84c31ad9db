// Package timeseries 提供批量异步的时序数据发布器。
// 记录先进入有界队列，由后台协程按批量大小或刷新间隔打包发布到 Kafka；
// 队列满时丢弃并计数，绝不阻塞热路径。
package timeseries

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wyfcoding/riskanalytics/pkg/logger"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
	"github.com/wyfcoding/riskanalytics/pkg/mq"
)

// RecordKind 记录类型
type RecordKind string

const (
	// KindReturn 收益率样本
	KindReturn RecordKind = "return"
	// KindMetric 风险指标点
	KindMetric RecordKind = "metric"
)

// Record 单条时序记录
type Record struct {
	Kind        RecordKind `json:"kind"`
	Name        string     `json:"name,omitempty"`
	SymbolID    uint32     `json:"symbol_id,omitempty"`
	Value       float64    `json:"value"`
	TimestampNS int64      `json:"timestamp_ns"`
}

// Config 发布器配置
type Config struct {
	Topic         string
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
}

// Writer 批量异步发布器
type Writer struct {
	producer *mq.KafkaProducer
	metrics  *metrics.Metrics
	cfg      Config
	queue    chan Record
}

// NewWriter 创建发布器
func NewWriter(producer *mq.KafkaProducer, m *metrics.Metrics, cfg Config) *Writer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8192
	}
	return &Writer{
		producer: producer,
		metrics:  m,
		cfg:      cfg,
		queue:    make(chan Record, cfg.QueueSize),
	}
}

// WriteReturn 记录收益率样本（非阻塞）
func (w *Writer) WriteReturn(symbolID uint32, logReturn float64, timestampNS int64) {
	w.enqueue(Record{
		Kind:        KindReturn,
		SymbolID:    symbolID,
		Value:       logReturn,
		TimestampNS: timestampNS,
	})
}

// WriteMetric 记录风险指标点（非阻塞）
func (w *Writer) WriteMetric(name string, value float64, timestampNS int64) {
	w.enqueue(Record{
		Kind:        KindMetric,
		Name:        name,
		Value:       value,
		TimestampNS: timestampNS,
	})
}

// enqueue 入队；队列满时丢弃并计数
func (w *Writer) enqueue(record Record) {
	select {
	case w.queue <- record:
	default:
		if w.metrics != nil {
			w.metrics.TimeseriesDroppedTotal.Inc()
		}
	}
}

// Run 批量发布循环直到 ctx 取消；退出前冲刷残留记录
func (w *Writer) Run(ctx context.Context) {
	logger.Info(ctx, "Timeseries writer started",
		"topic", w.cfg.Topic,
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, w.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.publish(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// 冲刷队列残留
			for {
				select {
				case record := <-w.queue:
					batch = append(batch, record)
					if len(batch) >= w.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					logger.Info(ctx, "Timeseries writer stopped")
					return
				}
			}
		case record := <-w.queue:
			batch = append(batch, record)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// publish 将一批记录发布到 Kafka
func (w *Writer) publish(batch []Record) {
	payloads := make([][]byte, 0, len(batch))
	for i := range batch {
		data, err := json.Marshal(&batch[i])
		if err != nil {
			continue
		}
		payloads = append(payloads, data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.producer.SendBatch(ctx, w.cfg.Topic, payloads); err != nil {
		logger.Error(ctx, "Failed to publish timeseries batch", "count", len(payloads), "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.TimeseriesRecordsTotal.Add(float64(len(payloads)))
	}
}
