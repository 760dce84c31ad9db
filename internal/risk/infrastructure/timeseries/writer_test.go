package timeseries

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterEnqueueNonBlocking(t *testing.T) {
	w := NewWriter(nil, nil, Config{
		Topic:     "risk.timeseries",
		QueueSize: 2,
	})

	w.WriteReturn(0, 0.01, 1)
	w.WriteMetric("portfolio_var", 1000, 2)
	// 队列已满：丢弃而不是阻塞
	w.WriteMetric("portfolio_var", 2000, 3)

	assert.Len(t, w.queue, 2)

	first := <-w.queue
	assert.Equal(t, KindReturn, first.Kind)
	assert.Equal(t, uint32(0), first.SymbolID)
	assert.Equal(t, 0.01, first.Value)

	second := <-w.queue
	assert.Equal(t, KindMetric, second.Kind)
	assert.Equal(t, "portfolio_var", second.Name)
	assert.Equal(t, 1000.0, second.Value)
}

func TestWriterDefaults(t *testing.T) {
	w := NewWriter(nil, nil, Config{Topic: "t"})
	assert.Equal(t, 100, w.cfg.BatchSize)
	assert.Equal(t, 8192, w.cfg.QueueSize)
}
