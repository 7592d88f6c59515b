package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 数据库驱动名称。
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// SQLiteConfig 定义了 SQLite 数据库文件的配置，适合单机部署。
type SQLiteConfig struct {
	Path string `yaml:"path"` // 数据库文件路径
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Enabled         bool     `yaml:"enabled"`         // 是否启用 Kafka
	Brokers         []string `yaml:"brokers"`         // Kafka Broker 地址列表
	TickTopic       string   `yaml:"tickTopic"`       // 每次采集提交后发布事件的主题
	EnrichmentTopic string   `yaml:"enrichmentTopic"` // 外部补充链接写入的主题
	GroupID         string   `yaml:"groupID"`         // 消费者组
}

// DatabaseConfigs 包含所有数据库的配置。
type DatabaseConfigs struct {
	Driver string       `yaml:"driver"` // 关系型存储驱动: "mysql" 或 "sqlite"
	MySQL  MySQLConfig  `yaml:"mysql"`  // MySQL 数据库配置
	SQLite SQLiteConfig `yaml:"sqlite"` // SQLite 数据库配置
	Redis  RedisConfig  `yaml:"redis"`  // Redis 数据库配置
	Kafka  KafkaConfig  `yaml:"kafka"`  // Kafka 消息队列配置
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// TrackerConfig 定义了采集循环与会话追踪的配置。
type TrackerConfig struct {
	PollInterval         string `yaml:"pollInterval"`         // 采集间隔，例如 "2m"
	Timezone             string `yaml:"timezone"`             // 计算日/周/月与整点边界使用的时区
	RunOnStart           bool   `yaml:"runOnStart"`           // 启动时立即采集一次
	CloseDanglingOnStart bool   `yaml:"closeDanglingOnStart"` // 启动时关闭上次异常退出遗留的会话
}

// CrawlerConfig 定义了热词抓取的配置。
type CrawlerConfig struct {
	URL       string `yaml:"url"`       // 热词页面地址
	Selector  string `yaml:"selector"`  // 热词链接的 CSS 选择器
	MaxTerms  int    `yaml:"maxTerms"`  // 每次最多保留的热词数量
	UserAgent string `yaml:"userAgent"` // 请求使用的 User-Agent
	Timeout   string `yaml:"timeout"`   // 单次请求超时，例如 "15s"
}

// AggregatorConfig 定义了时长统计与排名的配置。
type AggregatorConfig struct {
	Bucket      string `yaml:"bucket"`      // 量化桶大小，为空时等于采集间隔
	Quantize    *bool  `yaml:"quantize"`    // 是否按桶向上取整
	DefaultTopK int    `yaml:"defaultTopK"` // 默认返回条数
	MaxTopK     int    `yaml:"maxTopK"`     // 允许的最大返回条数
}

// CacheConfig 定义了当前排名在 Redis 中的缓存配置。
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"` // 是否启用 Redis 缓存
	Key     string `yaml:"key"`     // 缓存键
	TTL     string `yaml:"ttl"`     // 缓存有效期，例如 "10m"
}

// ServerConfig 定义了 HTTP 服务的配置。
type ServerConfig struct {
	Address         string `yaml:"address"`         // 监听地址
	ShutdownTimeout string `yaml:"shutdownTimeout"` // 优雅关闭超时
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`        // 应用程序信息
	Logger     LoggerConfig     `yaml:"logger"`     // 日志记录器配置
	Databases  DatabaseConfigs  `yaml:"databases"`  // 数据库配置
	Tracker    TrackerConfig    `yaml:"tracker"`    // 采集与会话配置
	Crawler    CrawlerConfig    `yaml:"crawler"`    // 抓取配置
	Aggregator AggregatorConfig `yaml:"aggregator"` // 排名配置
	Cache      CacheConfig      `yaml:"cache"`      // 缓存配置
	Server     ServerConfig     `yaml:"server"`     // HTTP 服务配置
	Middleware MiddlewareConfig `yaml:"middleware"` // 中间件配置
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Algorithm   string            `yaml:"algorithm"` // 支持: "fixedWindow", "tokenBucket"
	FixedWindow FixedWindowConfig `yaml:"fixedWindow"`
	TokenBucket TokenBucketConfig `yaml:"tokenBucket"`
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析并补全默认值后的应用程序配置结构体。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	return Parse(yamlFile)
}

// Parse 解析 YAML 内容，补全默认值并校验。
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Databases.Driver == "" {
		c.Databases.Driver = DriverSQLite
	}
	if c.Databases.SQLite.Path == "" {
		c.Databases.SQLite.Path = "trends.db"
	}
	if c.Databases.Kafka.TickTopic == "" {
		c.Databases.Kafka.TickTopic = "trend_ticks"
	}
	if c.Databases.Kafka.EnrichmentTopic == "" {
		c.Databases.Kafka.EnrichmentTopic = "trend_enrichments"
	}
	if c.Databases.Kafka.GroupID == "" {
		c.Databases.Kafka.GroupID = "trend-collector-group"
	}
	if c.Tracker.PollInterval == "" {
		c.Tracker.PollInterval = "2m"
	}
	if c.Tracker.Timezone == "" {
		c.Tracker.Timezone = "Local"
	}
	if c.Crawler.Selector == "" {
		c.Crawler.Selector = "a[href*='/Go?q=']"
	}
	if c.Crawler.MaxTerms <= 0 {
		c.Crawler.MaxTerms = 10
	}
	if c.Crawler.Timeout == "" {
		c.Crawler.Timeout = "15s"
	}
	if c.Aggregator.Bucket == "" {
		c.Aggregator.Bucket = c.Tracker.PollInterval
	}
	if c.Aggregator.Quantize == nil {
		on := true
		c.Aggregator.Quantize = &on
	}
	if c.Aggregator.DefaultTopK <= 0 {
		c.Aggregator.DefaultTopK = 20
	}
	if c.Aggregator.MaxTopK <= 0 {
		c.Aggregator.MaxTopK = 100
	}
	if c.Cache.Key == "" {
		c.Cache.Key = "trends:current"
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = "10m"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "5s"
	}
}

// Validate 检查配置中的取值是否合法。
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Databases.Driver {
	case DriverMySQL, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("未知的数据库驱动: %q", c.Databases.Driver))
	}
	for name, value := range map[string]string{
		"tracker.pollInterval":   c.Tracker.PollInterval,
		"crawler.timeout":        c.Crawler.Timeout,
		"aggregator.bucket":      c.Aggregator.Bucket,
		"cache.ttl":              c.Cache.TTL,
		"server.shutdownTimeout": c.Server.ShutdownTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s 不是合法的时长: %w", name, err))
			continue
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s 必须大于 0", name))
		}
	}
	if _, err := time.LoadLocation(c.Tracker.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("tracker.timezone 无效: %w", err))
	}
	if c.Aggregator.DefaultTopK > c.Aggregator.MaxTopK {
		errs = append(errs, fmt.Errorf("aggregator.defaultTopK (%d) 大于 maxTopK (%d)", c.Aggregator.DefaultTopK, c.Aggregator.MaxTopK))
	}
	if c.Databases.Kafka.Enabled && len(c.Databases.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("已启用 Kafka 但未配置 brokers"))
	}
	return errors.Join(errs...)
}

// PollInterval 返回解析后的采集间隔。
func (c *AppConfig) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Tracker.PollInterval)
	return d
}

// Bucket 返回解析后的量化桶大小。
func (c *AppConfig) Bucket() time.Duration {
	d, _ := time.ParseDuration(c.Aggregator.Bucket)
	return d
}

// CrawlerTimeout 返回单次抓取的超时时间。
func (c *AppConfig) CrawlerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Crawler.Timeout)
	return d
}

// CacheTTL 返回当前排名缓存的有效期。
func (c *AppConfig) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Cache.TTL)
	return d
}

// ShutdownTimeout 返回 HTTP 服务优雅关闭的超时时间。
func (c *AppConfig) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}

// Location 返回配置的时区，校验通过后不会失败。
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Tracker.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
