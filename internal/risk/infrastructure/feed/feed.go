// Package feed 提供行情接入适配器。
// 接入方式是一个封闭的小变体集（WebSocket 推送 / REST 轮询），
// 以 tagged variant 表达而不是运行时多态。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wyfcoding/riskanalytics/pkg/logger"
	"github.com/wyfcoding/riskanalytics/pkg/ratelimit"
)

// Kind 接入方式
type Kind string

const (
	// KindWebSocket WebSocket 推送
	KindWebSocket Kind = "websocket"
	// KindPolling REST 轮询
	KindPolling Kind = "polling"
)

// Config 行情接入配置
type Config struct {
	Name              string
	Kind              Kind
	WebsocketURL      string
	RestURL           string
	Symbols           []string
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration
	// 轮询限速（每秒请求数）
	PollRate   float64
	BufferSize int
}

// Message 标准化行情消息
type Message struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	TimestampNS int64   `json:"timestamp_ns"`
}

// Stats 接入统计
type Stats struct {
	FeedName          string `json:"feed_name"`
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesProcessed uint64 `json:"messages_processed"`
	ConnectionErrors  uint64 `json:"connection_errors"`
	Connected         bool   `json:"connected"`
}

// Feed 行情接入适配器
type Feed struct {
	cfg      Config
	messages chan Message

	connected atomic.Bool

	messagesReceived  atomic.Uint64
	messagesProcessed atomic.Uint64
	connectionErrors  atomic.Uint64

	// 仅轮询模式使用
	limiter    *ratelimit.Limiter
	httpClient *http.Client
}

// New 创建行情接入适配器
func New(cfg Config) (*Feed, error) {
	switch cfg.Kind {
	case KindWebSocket:
		if cfg.WebsocketURL == "" {
			return nil, fmt.Errorf("websocket url is required for feed %q", cfg.Name)
		}
	case KindPolling:
		if cfg.RestURL == "" {
			return nil, fmt.Errorf("rest url is required for feed %q", cfg.Name)
		}
		if len(cfg.Symbols) == 0 {
			return nil, fmt.Errorf("at least one symbol is required for polling feed %q", cfg.Name)
		}
	default:
		return nil, fmt.Errorf("unknown feed kind: %q", cfg.Kind)
	}

	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.PollRate <= 0 {
		cfg.PollRate = 5
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}

	f := &Feed{
		cfg:      cfg,
		messages: make(chan Message, cfg.BufferSize),
	}
	if cfg.Kind == KindPolling {
		f.limiter = ratelimit.New(cfg.PollRate, 1)
		f.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return f, nil
}

// Messages 标准化行情消息通道
func (f *Feed) Messages() <-chan Message {
	return f.messages
}

// Stats 接入统计
func (f *Feed) Stats() Stats {
	return Stats{
		FeedName:          f.cfg.Name,
		MessagesReceived:  f.messagesReceived.Load(),
		MessagesProcessed: f.messagesProcessed.Load(),
		ConnectionErrors:  f.connectionErrors.Load(),
		Connected:         f.connected.Load(),
	}
}

// Run 运行接入循环直到 ctx 取消
func (f *Feed) Run(ctx context.Context) error {
	switch f.cfg.Kind {
	case KindWebSocket:
		return f.runWebSocket(ctx)
	case KindPolling:
		return f.runPolling(ctx)
	}
	return fmt.Errorf("unknown feed kind: %q", f.cfg.Kind)
}

// subscribeRequest WebSocket 订阅请求
type subscribeRequest struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// tick 上游行情 tick
type tick struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	TimestampNS int64   `json:"timestamp_ns"`
}

// runWebSocket WebSocket 推送模式：断线按固定延迟重连
func (f *Feed) runWebSocket(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := f.consumeWebSocket(ctx); err != nil {
			f.connectionErrors.Add(1)
			logger.Warn(ctx, "Feed connection lost, reconnecting",
				"feed", f.cfg.Name,
				"delay", f.cfg.ReconnectDelay,
				"error", err,
			)
		}
		f.connected.Store(false)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(f.cfg.ReconnectDelay):
		}
	}
}

// consumeWebSocket 单次连接的订阅与读取循环
func (f *Feed) consumeWebSocket(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.WebsocketURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.cfg.WebsocketURL, err)
	}
	defer conn.Close()

	f.connected.Store(true)
	logger.Info(ctx, "Feed connected", "feed", f.cfg.Name, "url", f.cfg.WebsocketURL)

	if err := conn.WriteJSON(subscribeRequest{Action: "subscribe", Symbols: f.cfg.Symbols}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// 心跳与取消监听
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(f.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				conn.Close()
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		f.handlePayload(payload)
	}
}

// handlePayload 解析并入队一条行情消息
func (f *Feed) handlePayload(payload []byte) {
	f.messagesReceived.Add(1)

	var t tick
	if err := json.Unmarshal(payload, &t); err != nil || t.Symbol == "" {
		return
	}
	if t.TimestampNS == 0 {
		t.TimestampNS = time.Now().UnixNano()
	}

	f.push(Message{Symbol: t.Symbol, Price: t.Price, TimestampNS: t.TimestampNS})
}

// runPolling REST 轮询模式：限速轮询每个订阅标的
func (f *Feed) runPolling(ctx context.Context) error {
	f.connected.Store(true)
	defer f.connected.Store(false)

	logger.Info(ctx, "Feed polling started", "feed", f.cfg.Name, "url", f.cfg.RestURL, "symbols", len(f.cfg.Symbols))

	for {
		for _, symbol := range f.cfg.Symbols {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil
			}
			if err := f.fetchQuote(ctx, symbol); err != nil {
				f.connectionErrors.Add(1)
				logger.Debug(ctx, "Feed poll failed", "feed", f.cfg.Name, "symbol", symbol, "error", err)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// fetchQuote 拉取单个标的的最新报价
func (f *Feed) fetchQuote(ctx context.Context, symbol string) error {
	u := fmt.Sprintf("%s?symbol=%s", f.cfg.RestURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	f.handlePayload(payload)
	return nil
}

// push 非阻塞入队；缓冲满时直接丢弃新消息，被丢弃的消息不计入 MessagesProcessed
func (f *Feed) push(msg Message) {
	select {
	case f.messages <- msg:
		f.messagesProcessed.Add(1)
	default:
	}
}
