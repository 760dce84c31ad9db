package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnHistoryAppendAndLength(t *testing.T) {
	h := NewReturnHistory(4, 8)

	assert.Equal(t, 0, h.Length(0))

	for i := 0; i < 5; i++ {
		require.True(t, h.Append(0, float64(i)*0.01))
	}
	assert.Equal(t, 5, h.Length(0))
	assert.Equal(t, 0, h.Length(1))

	// 超过容量后长度封顶
	for i := 5; i < 20; i++ {
		require.True(t, h.Append(0, float64(i)*0.01))
	}
	assert.Equal(t, 8, h.Length(0))
}

func TestReturnHistorySnapshotOrder(t *testing.T) {
	h := NewReturnHistory(2, 8)

	for i := 0; i < 5; i++ {
		h.Append(0, float64(i))
	}

	buf := make([]float64, 8)
	n := h.Snapshot(0, buf)
	require.Equal(t, 5, n)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, buf[:n])
}

func TestReturnHistorySnapshotWraparound(t *testing.T) {
	h := NewReturnHistory(2, 4)

	for i := 0; i < 10; i++ {
		h.Append(0, float64(i))
	}

	buf := make([]float64, 4)
	n := h.Snapshot(0, buf)
	require.Equal(t, 4, n)
	// 最旧 → 最新
	assert.Equal(t, []float64{6, 7, 8, 9}, buf[:n])
	// 最新样本等于最后一次写入
	assert.Equal(t, 9.0, buf[n-1])
}

func TestReturnHistoryOutOfRange(t *testing.T) {
	h := NewReturnHistory(2, 4)

	assert.False(t, h.Append(2, 0.01))
	assert.False(t, h.Append(1000, 0.01))
	assert.Equal(t, 0, h.Length(2))

	buf := make([]float64, 4)
	assert.Equal(t, 0, h.Snapshot(5, buf))
}

func TestReturnHistorySnapshotSmallBuffer(t *testing.T) {
	h := NewReturnHistory(1, 8)
	for i := 0; i < 6; i++ {
		h.Append(0, float64(i))
	}

	buf := make([]float64, 3)
	n := h.Snapshot(0, buf)
	assert.Equal(t, 3, n)
}
