package feed

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/riskanalytics/internal/risk/application"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

func TestNewFeedValidation(t *testing.T) {
	_, err := New(Config{Name: "f", Kind: KindWebSocket})
	assert.Error(t, err)

	_, err = New(Config{Name: "f", Kind: KindPolling})
	assert.Error(t, err)

	_, err = New(Config{Name: "f", Kind: Kind("ftp")})
	assert.Error(t, err)

	f, err := New(Config{Name: "f", Kind: KindWebSocket, WebsocketURL: "wss://example.com/stream"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, f.cfg.ReconnectDelay)
	assert.Equal(t, 4096, cap(f.messages))
}

func TestHandlePayload(t *testing.T) {
	f, err := New(Config{Name: "f", Kind: KindWebSocket, WebsocketURL: "wss://example.com/stream"})
	require.NoError(t, err)

	f.handlePayload([]byte(`{"symbol":"AAPL","price":187.5,"timestamp_ns":123}`))

	stats := f.Stats()
	assert.Equal(t, uint64(1), stats.MessagesReceived)
	assert.Equal(t, uint64(1), stats.MessagesProcessed)

	msg := <-f.Messages()
	assert.Equal(t, "AAPL", msg.Symbol)
	assert.Equal(t, 187.5, msg.Price)
	assert.Equal(t, int64(123), msg.TimestampNS)
}

func TestHandlePayloadMalformed(t *testing.T) {
	f, err := New(Config{Name: "f", Kind: KindWebSocket, WebsocketURL: "wss://example.com/stream"})
	require.NoError(t, err)

	f.handlePayload([]byte(`not json`))
	f.handlePayload([]byte(`{"price":1.0}`))

	stats := f.Stats()
	assert.Equal(t, uint64(2), stats.MessagesReceived)
	assert.Equal(t, uint64(0), stats.MessagesProcessed)
	assert.Empty(t, f.Messages())
}

func TestHandlePayloadFillsTimestamp(t *testing.T) {
	f, err := New(Config{Name: "f", Kind: KindWebSocket, WebsocketURL: "wss://example.com/stream"})
	require.NoError(t, err)

	f.handlePayload([]byte(`{"symbol":"MSFT","price":410.0}`))
	msg := <-f.Messages()
	assert.Greater(t, msg.TimestampNS, int64(0))
}

func newIngestorService(t *testing.T) *application.RiskApplicationService {
	t.Helper()
	engine := domain.NewRiskAnalytics(domain.EngineConfig{
		MaxSymbols:  8,
		Simulations: 100,
		Seed:        1,
	})
	return application.NewRiskApplicationService(engine, nil, nil, nil)
}

func TestIngestorDerivesLogReturns(t *testing.T) {
	svc := newIngestorService(t)
	in := NewIngestor(svc, nil, map[string]uint32{"AAPL": 0})
	ctx := context.Background()

	// 首笔价格只建立基准，不产生收益率
	in.handle(ctx, Message{Symbol: "AAPL", Price: 100})
	assert.Equal(t, 0, svc.Engine().ReturnLength(0))

	in.handle(ctx, Message{Symbol: "AAPL", Price: 101})
	require.Equal(t, 1, svc.Engine().ReturnLength(0))

	buf := make([]float64, 4)
	n := svc.Engine().SnapshotReturns(0, buf)
	require.Equal(t, 1, n)
	assert.InDelta(t, math.Log(101.0/100.0), buf[0], 1e-12)
}

func TestIngestorIgnoresUnknownSymbolsAndBadPrices(t *testing.T) {
	svc := newIngestorService(t)
	in := NewIngestor(svc, nil, map[string]uint32{"AAPL": 0})
	ctx := context.Background()

	in.handle(ctx, Message{Symbol: "TSLA", Price: 200})
	in.handle(ctx, Message{Symbol: "AAPL", Price: -5})
	in.handle(ctx, Message{Symbol: "AAPL", Price: 0})
	assert.Equal(t, 0, svc.Engine().ReturnLength(0))
}

func TestIngestorLogReturnValue(t *testing.T) {
	svc := newIngestorService(t)
	in := NewIngestor(svc, nil, map[string]uint32{"AAPL": 3})
	ctx := context.Background()

	in.handle(ctx, Message{Symbol: "AAPL", Price: 100})
	in.handle(ctx, Message{Symbol: "AAPL", Price: 110})
	for i := 0; i < 40; i++ {
		in.handle(ctx, Message{Symbol: "AAPL", Price: 110})
	}
	require.Equal(t, 41, svc.Engine().ReturnLength(3))

	buf := make([]float64, 64)
	n := svc.Engine().SnapshotReturns(3, buf)
	require.Equal(t, 41, n)
	assert.InDelta(t, math.Log(110.0/100.0), buf[0], 1e-12)
	assert.InDelta(t, 0.0, buf[n-1], 1e-12)
}
