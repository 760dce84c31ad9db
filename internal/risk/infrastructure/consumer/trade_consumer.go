// Package consumer 消费撮合侧的成交事件并驱动持仓簿更新。
// 解析失败或持仓更新失败的消息进入死信队列。
package consumer

import (
	"context"
	"errors"

	"github.com/wyfcoding/riskanalytics/internal/risk/application"
	"github.com/wyfcoding/riskanalytics/pkg/logger"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
	"github.com/wyfcoding/riskanalytics/pkg/mq"
)

// TradeExecutedEvent 成交事件
type TradeExecutedEvent struct {
	SymbolID    uint32 `json:"symbol_id"`
	Quantity    string `json:"quantity"`
	MarketValue string `json:"market_value"`
	Delta       string `json:"delta"`
	TimestampNS int64  `json:"timestamp_ns"`
}

// TradeConsumer 成交事件消费者
type TradeConsumer struct {
	consumer *mq.KafkaConsumer
	dlq      *mq.DeadLetterQueue
	svc      *application.RiskApplicationService
	metrics  *metrics.Metrics
}

// NewTradeConsumer 创建成交事件消费者；dlq 允许为 nil
func NewTradeConsumer(
	consumer *mq.KafkaConsumer,
	dlq *mq.DeadLetterQueue,
	svc *application.RiskApplicationService,
	m *metrics.Metrics,
) *TradeConsumer {
	return &TradeConsumer{
		consumer: consumer,
		dlq:      dlq,
		svc:      svc,
		metrics:  m,
	}
}

// Run 消费循环直到 ctx 取消
func (c *TradeConsumer) Run(ctx context.Context) error {
	logger.Info(ctx, "Trade consumer started")

	for {
		msg, err := c.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Info(ctx, "Trade consumer stopped")
				return nil
			}
			logger.Error(ctx, "Failed to read trade event", "error", err)
			continue
		}

		if c.metrics != nil {
			c.metrics.TradeEventsTotal.Inc()
		}

		var event TradeExecutedEvent
		if err := msg.UnmarshalPayload(&event); err != nil {
			logger.Warn(ctx, "Malformed trade event", "offset", msg.Offset, "error", err)
			c.deadLetter(ctx, msg, "unmarshal failed", err)
			continue
		}

		_, err = c.svc.UpdatePosition(ctx, &application.UpdatePositionRequest{
			SymbolID:    event.SymbolID,
			Quantity:    event.Quantity,
			MarketValue: event.MarketValue,
			Delta:       event.Delta,
		})
		if err != nil {
			logger.Warn(ctx, "Failed to apply trade event", "symbol_id", event.SymbolID, "error", err)
			c.deadLetter(ctx, msg, "position update failed", err)
		}
	}
}

// deadLetter 投递死信；投递失败只记日志
func (c *TradeConsumer) deadLetter(ctx context.Context, msg *mq.Message, reason string, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Send(ctx, msg, reason, cause); err != nil {
		logger.Error(ctx, "Failed to send to dead letter queue", "offset", msg.Offset, "error", err)
	}
}
