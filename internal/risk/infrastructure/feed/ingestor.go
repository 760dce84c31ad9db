// 行情消息 → 收益率样本。对每个标的用相邻两笔价格推导对数收益率，
// 未知标的与非正价格直接丢弃。
package feed

import (
	"context"
	"math"

	"github.com/wyfcoding/riskanalytics/internal/risk/application"
	"github.com/wyfcoding/riskanalytics/pkg/logger"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
)

// Ingestor 行情消息摄入器
type Ingestor struct {
	svc     *application.RiskApplicationService
	metrics *metrics.Metrics

	// 标的代码 → 密集 symbol id
	symbolIDs map[string]uint32
	// 各标的上一笔价格，键为 symbol id
	lastPrices map[uint32]float64
}

// NewIngestor 创建摄入器；symbolIDs 在启动时由配置固定
func NewIngestor(svc *application.RiskApplicationService, m *metrics.Metrics, symbolIDs map[string]uint32) *Ingestor {
	return &Ingestor{
		svc:        svc,
		metrics:    m,
		symbolIDs:  symbolIDs,
		lastPrices: make(map[uint32]float64, len(symbolIDs)),
	}
}

// Run 消费行情通道直到 ctx 取消
func (in *Ingestor) Run(ctx context.Context, f *Feed) {
	logger.Info(ctx, "Feed ingestor started", "symbols", len(in.symbolIDs))

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Feed ingestor stopped")
			return
		case msg := <-f.Messages():
			in.handle(ctx, msg)
		}
	}
}

// handle 处理单条行情消息
func (in *Ingestor) handle(ctx context.Context, msg Message) {
	if in.metrics != nil {
		in.metrics.FeedMessagesTotal.Inc()
	}

	symbolID, ok := in.symbolIDs[msg.Symbol]
	if !ok || msg.Price <= 0 {
		return
	}

	last := in.lastPrices[symbolID]
	in.lastPrices[symbolID] = msg.Price
	if last <= 0 {
		return
	}

	logReturn := math.Log(msg.Price / last)
	if err := in.svc.IngestReturn(ctx, &application.IngestReturnRequest{
		SymbolID:  symbolID,
		LogReturn: logReturn,
	}); err != nil {
		logger.Warn(ctx, "Failed to ingest return", "symbol", msg.Symbol, "error", err)
	}
}
