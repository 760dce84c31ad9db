// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 风险引擎配置
	Risk RiskConfig `mapstructure:"risk"`
	// 行情接入配置
	Feed FeedConfig `mapstructure:"feed"`
	// 交易事件消费配置
	Consumer ConsumerConfig `mapstructure:"consumer"`
	// 时序数据发布配置
	Timeseries TimeseriesConfig `mapstructure:"timeseries"`
	// 快照发布配置
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	// 数据库配置（违规审计）
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host" default:"0.0.0.0"`
	// 监听端口
	Port int `mapstructure:"port" default:"8080"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout" default:"30"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout" default:"30"`
	// 每秒请求限流（0 为不限流）
	RateLimitQPS int `mapstructure:"rate_limit_qps" default:"0"`
	// 限流突发容量
	RateLimitBurst int `mapstructure:"rate_limit_burst" default:"0"`
}

// RiskConfig 风险引擎配置
type RiskConfig struct {
	// 标的数量上限（密集 symbol id 空间）
	MaxSymbols int `mapstructure:"max_symbols" default:"1000"`
	// 收益率历史深度（交易日）
	HistoryDepth int `mapstructure:"history_depth" default:"252"`
	// 相关性滚动窗口
	CorrelationWindow int `mapstructure:"correlation_window" default:"60"`
	// VaR 缓存 TTL（毫秒）
	VaRCacheTTLMS int `mapstructure:"var_cache_ttl_ms" default:"1000"`
	// 蒙特卡洛模拟次数
	Simulations int `mapstructure:"simulations" default:"10000"`
	// 每多少次 check 执行一次压力测试
	StressCheckInterval int `mapstructure:"stress_check_interval" default:"100"`
	// 蒙特卡洛随机种子（0 表示按时间播种）
	Seed uint64 `mapstructure:"seed" default:"0"`
	// 是否使用 Cholesky 分解注入相关性（默认保留简化注入）
	UseCholesky bool `mapstructure:"use_cholesky" default:"false"`
	// 背景刷新周期（毫秒）
	RefreshIntervalMS int `mapstructure:"refresh_interval_ms" default:"500"`
	// 每轮相关性扫描的最大 pair 数
	SweepMaxPairs int `mapstructure:"sweep_max_pairs" default:"256"`
	// 风险限额
	Limits LimitsConfig `mapstructure:"limits"`
}

// LimitsConfig 风险限额配置
type LimitsConfig struct {
	// 组合 VaR 上限（美元）
	MaxPortfolioVaR float64 `mapstructure:"max_portfolio_var" default:"1000000"`
	// 单一持仓 VaR 上限（美元）
	MaxPositionVaR float64 `mapstructure:"max_position_var" default:"100000"`
	// 相关系数上限
	MaxCorrelation float64 `mapstructure:"max_correlation" default:"0.8"`
	// 压力损失上限（美元）
	MaxStressLoss float64 `mapstructure:"max_stress_loss" default:"2000000"`
	// 单一持仓集中度上限（占总敞口比例）
	MaxConcentration float64 `mapstructure:"max_concentration" default:"0.2"`
}

// FeedConfig 行情接入配置
type FeedConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled" default:"false"`
	// 接入方式：websocket 或 polling
	Kind string `mapstructure:"kind" default:"websocket"`
	// 接入名称（统计用）
	Name string `mapstructure:"name" default:"primary"`
	// WebSocket 地址
	WebsocketURL string `mapstructure:"websocket_url"`
	// REST 轮询地址
	RestURL string `mapstructure:"rest_url"`
	// 订阅的标的代码
	Symbols []string `mapstructure:"symbols"`
	// 重连延迟（毫秒）
	ReconnectDelayMS int `mapstructure:"reconnect_delay_ms" default:"5000"`
	// 心跳间隔（毫秒）
	HeartbeatIntervalMS int `mapstructure:"heartbeat_interval_ms" default:"30000"`
	// 轮询限速（每秒请求数）
	PollRatePerSec float64 `mapstructure:"poll_rate_per_sec" default:"5"`
	// 消息缓冲区大小
	BufferSize int `mapstructure:"buffer_size" default:"4096"`
}

// ConsumerConfig 交易事件消费配置
type ConsumerConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled" default:"false"`
	// 交易事件 topic
	TradeTopic string `mapstructure:"trade_topic" default:"trade.executed"`
	// 死信 topic
	DeadLetterTopic string `mapstructure:"dead_letter_topic" default:"trade.executed.dlq"`
}

// TimeseriesConfig 时序数据发布配置
type TimeseriesConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled" default:"false"`
	// 发布 topic
	Topic string `mapstructure:"topic" default:"risk.timeseries"`
	// 批量大小
	BatchSize int `mapstructure:"batch_size" default:"100"`
	// 刷新间隔（毫秒）
	FlushIntervalMS int `mapstructure:"flush_interval_ms" default:"1000"`
	// 队列容量
	QueueSize int `mapstructure:"queue_size" default:"8192"`
}

// SnapshotConfig 快照发布配置
type SnapshotConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled" default:"false"`
	// Redis key
	Key string `mapstructure:"key" default:"riskengine:snapshot"`
	// 快照 TTL（秒）
	TTLSeconds int `mapstructure:"ttl_seconds" default:"10"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 是否启用违规审计落库
	Enabled bool `mapstructure:"enabled" default:"false"`
	// 驱动：mysql
	Driver string `mapstructure:"driver" default:"mysql"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns" default:"25"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns" default:"5"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime" default:"300"`
	// 是否启用日志
	LogEnabled bool `mapstructure:"log_enabled" default:"false"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold" default:"1000"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 主机地址
	Host string `mapstructure:"host" default:"localhost"`
	// 端口
	Port int `mapstructure:"port" default:"6379"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db" default:"0"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size" default:"10"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout" default:"5"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout" default:"3"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout" default:"3"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// Consumer Group ID
	GroupID string `mapstructure:"group_id"`
	// 消费者超时（秒）
	SessionTimeout int `mapstructure:"session_timeout" default:"10"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff" default:"100"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	// 日志级别
	Level string `mapstructure:"level" default:"info"`
	// 输出格式
	Format string `mapstructure:"format" default:"json"`
	// 输出目标
	Output string `mapstructure:"output" default:"stdout"`
	// 文件路径
	FilePath string `mapstructure:"file_path" default:"logs/riskengine.log"`
	// 最大文件大小（MB）
	MaxSize int `mapstructure:"max_size" default:"100"`
	// 最大备份文件数
	MaxBackups int `mapstructure:"max_backups" default:"10"`
	// 最大保留天数
	MaxAge int `mapstructure:"max_age" default:"30"`
	// 是否压缩
	Compress bool `mapstructure:"compress" default:"true"`
	// 是否输出调用者信息
	WithCaller bool `mapstructure:"with_caller" default:"true"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Prometheus 监听端口
	Port int `mapstructure:"port" default:"9090"`
	// 指标路径
	Path string `mapstructure:"path" default:"/metrics"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 环境变量覆盖（使用 _ 替代 .）
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Risk.MaxSymbols <= 0 {
		return fmt.Errorf("risk.max_symbols must be positive")
	}
	if c.Risk.HistoryDepth <= 0 {
		return fmt.Errorf("risk.history_depth must be positive")
	}
	if c.Risk.CorrelationWindow <= 0 || c.Risk.CorrelationWindow > c.Risk.HistoryDepth {
		return fmt.Errorf("risk.correlation_window must be in (0, history_depth]")
	}
	if c.Feed.Enabled {
		switch c.Feed.Kind {
		case "websocket":
			if c.Feed.WebsocketURL == "" {
				return fmt.Errorf("feed.websocket_url is required for websocket feed")
			}
		case "polling":
			if c.Feed.RestURL == "" {
				return fmt.Errorf("feed.rest_url is required for polling feed")
			}
		default:
			return fmt.Errorf("unknown feed kind: %s", c.Feed.Kind)
		}
	}
	if (c.Consumer.Enabled || c.Timeseries.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when consumer or timeseries is enabled")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required when database is enabled")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.rate_limit_qps", 0)
	v.SetDefault("http.rate_limit_burst", 0)

	v.SetDefault("risk.max_symbols", 1000)
	v.SetDefault("risk.history_depth", 252)
	v.SetDefault("risk.correlation_window", 60)
	v.SetDefault("risk.var_cache_ttl_ms", 1000)
	v.SetDefault("risk.simulations", 10000)
	v.SetDefault("risk.stress_check_interval", 100)
	v.SetDefault("risk.seed", 0)
	v.SetDefault("risk.use_cholesky", false)
	v.SetDefault("risk.refresh_interval_ms", 500)
	v.SetDefault("risk.sweep_max_pairs", 256)
	v.SetDefault("risk.limits.max_portfolio_var", 1000000.0)
	v.SetDefault("risk.limits.max_position_var", 100000.0)
	v.SetDefault("risk.limits.max_correlation", 0.8)
	v.SetDefault("risk.limits.max_stress_loss", 2000000.0)
	v.SetDefault("risk.limits.max_concentration", 0.2)

	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.kind", "websocket")
	v.SetDefault("feed.name", "primary")
	v.SetDefault("feed.reconnect_delay_ms", 5000)
	v.SetDefault("feed.heartbeat_interval_ms", 30000)
	v.SetDefault("feed.poll_rate_per_sec", 5.0)
	v.SetDefault("feed.buffer_size", 4096)

	v.SetDefault("consumer.enabled", false)
	v.SetDefault("consumer.trade_topic", "trade.executed")
	v.SetDefault("consumer.dead_letter_topic", "trade.executed.dlq")

	v.SetDefault("timeseries.enabled", false)
	v.SetDefault("timeseries.topic", "risk.timeseries")
	v.SetDefault("timeseries.batch_size", 100)
	v.SetDefault("timeseries.flush_interval_ms", 1000)
	v.SetDefault("timeseries.queue_size", 8192)

	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.key", "riskengine:snapshot")
	v.SetDefault("snapshot.ttl_seconds", 10)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.session_timeout", 10)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/riskengine.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
