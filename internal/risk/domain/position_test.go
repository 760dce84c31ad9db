package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionBookUpsert(t *testing.T) {
	b := NewPositionBook(10)

	require.NoError(t, b.Update(3, 100, 1_000_000, 1.0, 25_000, 1111))

	position, ok := b.Get(3)
	require.True(t, ok)
	assert.Equal(t, uint32(3), position.SymbolID)
	assert.Equal(t, 100.0, position.Quantity)
	assert.Equal(t, 1_000_000.0, position.MarketValue)
	assert.Equal(t, 1.0, position.Delta)
	assert.Equal(t, 25_000.0, position.VaRContribution)
	assert.Equal(t, int64(1111), position.LastUpdateNS)
	assert.Equal(t, 1, b.Size())

	// 重复更新只改时间戳
	require.NoError(t, b.Update(3, 100, 1_000_000, 1.0, 25_000, 2222))
	updated, _ := b.Get(3)
	assert.Equal(t, int64(2222), updated.LastUpdateNS)
	updated.LastUpdateNS = position.LastUpdateNS
	assert.Equal(t, position, updated)
	assert.Equal(t, 1, b.Size())
}

func TestPositionBookFlatRetained(t *testing.T) {
	b := NewPositionBook(10)

	require.NoError(t, b.Update(0, 100, 1_000_000, 1.0, 25_000, 1))
	require.NoError(t, b.Update(0, 0, 1_000_000, 1.0, 25_000, 2))

	position, ok := b.Get(0)
	require.True(t, ok)
	assert.True(t, position.IsFlat())
	// 平仓后市值与 VaR 贡献归零，记录保留
	assert.Equal(t, 0.0, position.MarketValue)
	assert.Equal(t, 0.0, position.VaRContribution)
	assert.Equal(t, 1, b.Size())
}

func TestPositionBookGreeks(t *testing.T) {
	b := NewPositionBook(10)

	require.NoError(t, b.Update(1, 10, 50_000, 0.9, 1_000, 1))
	require.NoError(t, b.UpdateGreeks(1, 0.02, 0.3, -0.05, 1.1, 2))

	position, _ := b.Get(1)
	assert.Equal(t, 0.02, position.Gamma)
	assert.Equal(t, 0.3, position.Vega)
	assert.Equal(t, -0.05, position.Theta)
	assert.Equal(t, 1.1, position.Beta)
	// 持仓字段不受影响
	assert.Equal(t, 10.0, position.Quantity)

	// 交易更新保留已有的希腊字母
	require.NoError(t, b.Update(1, 20, 100_000, 0.9, 2_000, 3))
	position, _ = b.Get(1)
	assert.Equal(t, 0.02, position.Gamma)

	// 希腊字母先于首笔交易到达时创建空记录
	require.NoError(t, b.UpdateGreeks(2, 0.01, 0, 0, 0, 4))
	created, ok := b.Get(2)
	require.True(t, ok)
	assert.True(t, created.IsFlat())
}

func TestPositionBookOutOfRange(t *testing.T) {
	b := NewPositionBook(10)

	assert.ErrorIs(t, b.Update(10, 1, 1, 1, 0, 1), ErrSymbolOutOfRange)
	assert.ErrorIs(t, b.UpdateGreeks(11, 0, 0, 0, 0, 1), ErrSymbolOutOfRange)

	_, ok := b.Get(10)
	assert.False(t, ok)
}

func TestPositionBookSnapshotIsolation(t *testing.T) {
	b := NewPositionBook(10)
	require.NoError(t, b.Update(0, 1, 100, 1, 0, 1))
	require.NoError(t, b.Update(5, 2, 200, 1, 0, 2))

	snapshot := b.Snapshot()
	require.Len(t, snapshot, 2)
	// 快照次序按首次出现顺序
	assert.Equal(t, uint32(0), snapshot[0].SymbolID)
	assert.Equal(t, uint32(5), snapshot[1].SymbolID)

	// 修改快照不影响簿内数据
	snapshot[0].MarketValue = 999
	position, _ := b.Get(0)
	assert.Equal(t, 100.0, position.MarketValue)
}
