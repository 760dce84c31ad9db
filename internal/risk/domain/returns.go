// 收益率历史存储：每个标的一个固定容量的环形缓冲
// 单写多读；写者只用 relaxed 原子更新长度与写指针，读者允许观察到落后一个样本的视图
package domain

import "sync/atomic"

// ReturnHistory 按标的存储最近 depth 个日收益率
type ReturnHistory struct {
	maxSymbols int
	depth      int

	// samples[s] 为标的 s 的环形缓冲
	samples [][]float64
	length  []atomic.Uint32
	write   []atomic.Uint32
}

// NewReturnHistory 创建收益率历史存储
func NewReturnHistory(maxSymbols, depth int) *ReturnHistory {
	h := &ReturnHistory{
		maxSymbols: maxSymbols,
		depth:      depth,
		samples:    make([][]float64, maxSymbols),
		length:     make([]atomic.Uint32, maxSymbols),
		write:      make([]atomic.Uint32, maxSymbols),
	}
	for s := range h.samples {
		h.samples[s] = make([]float64, depth)
	}
	return h
}

// MaxSymbols 标的数量上限
func (h *ReturnHistory) MaxSymbols() int {
	return h.maxSymbols
}

// Depth 环形缓冲容量
func (h *ReturnHistory) Depth() int {
	return h.depth
}

// Append 追加一个收益率样本；越界 id 静默丢弃并返回 false
func (h *ReturnHistory) Append(symbol uint32, r float64) bool {
	if int(symbol) >= h.maxSymbols {
		return false
	}

	idx := h.write[symbol].Load()
	h.samples[symbol][idx] = r
	h.write[symbol].Store((idx + 1) % uint32(h.depth))

	if l := h.length[symbol].Load(); l < uint32(h.depth) {
		h.length[symbol].Store(l + 1)
	}
	return true
}

// Length 当前样本数
func (h *ReturnHistory) Length(symbol uint32) int {
	if int(symbol) >= h.maxSymbols {
		return 0
	}
	return int(h.length[symbol].Load())
}

// Snapshot 将逻辑序列（旧 → 新）拷贝到 out，返回拷贝的样本数
func (h *ReturnHistory) Snapshot(symbol uint32, out []float64) int {
	if int(symbol) >= h.maxSymbols {
		return 0
	}

	n := int(h.length[symbol].Load())
	if n > len(out) {
		n = len(out)
	}
	if n == 0 {
		return 0
	}

	w := int(h.write[symbol].Load())
	start := (w - n + h.depth) % h.depth
	ring := h.samples[symbol]
	for i := 0; i < n; i++ {
		out[i] = ring[(start+i)%h.depth]
	}
	return n
}
