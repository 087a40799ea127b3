package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
	Economy  EconomyConfig  `mapstructure:"economy"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release / test
}

// DatabaseConfig 选择存储驱动：mysql（生产）或 sqlite（单机/开发）
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	LogLevel string `mapstructure:"log_level"` // silent / error / warn / info
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
	StakeEvents  string `mapstructure:"stake_events"`
}

// AuthConfig JWTSecret 为空时不启用鉴权
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type BusinessConfig struct {
	Timezone            string `mapstructure:"timezone"`
	PointsExpiryDays    int    `mapstructure:"points_expiry_days"`
	MaxRetryCount       int    `mapstructure:"max_retry_count"`
	OutboxRetentionDays int    `mapstructure:"outbox_retention_days"`
	LockTimeoutSeconds  int    `mapstructure:"lock_timeout_seconds"`
	RateLimitPerMinute  int    `mapstructure:"rate_limit_per_minute"`
	SimulatedClock      bool   `mapstructure:"simulated_clock"`
}

// EconomyConfig 经济系统静态表，留空则使用 economy 包内置默认值
type EconomyConfig struct {
	Tiers            []TierConfig      `mapstructure:"tiers"`
	Pools            []PoolConfig      `mapstructure:"pools"`
	Rewards          []RewardConfig    `mapstructure:"rewards"`
	EarningRates     []EarningRate     `mapstructure:"earning_rates"`
	StreakMilestones []StreakMilestone `mapstructure:"streak_milestones"`
	FullStreakDays   int               `mapstructure:"full_streak_days"`
}

type TierConfig struct {
	Name              string  `mapstructure:"name"`
	MinLifetimePoints int64   `mapstructure:"min_lifetime_points"`
	Multiplier        float64 `mapstructure:"multiplier"`
	BonusStakingAPY   float64 `mapstructure:"bonus_staking_apy"`
}

type PoolConfig struct {
	ID                           string  `mapstructure:"id"`
	Name                         string  `mapstructure:"name"`
	LockPeriodDays               int     `mapstructure:"lock_period_days"`
	APYPercent                   float64 `mapstructure:"apy_percent"`
	MinStake                     int64   `mapstructure:"min_stake"`
	MaxStake                     int64   `mapstructure:"max_stake"`
	EarlyUnstakePenaltyPercent   float64 `mapstructure:"early_unstake_penalty_percent"`
	StreakMultiplierAtFullStreak float64 `mapstructure:"streak_multiplier_at_full_streak"`
}

type RewardConfig struct {
	ID              string `mapstructure:"id"`
	Name            string `mapstructure:"name"`
	Partner         string `mapstructure:"partner"`
	Category        string `mapstructure:"category"`
	PointsCost      int64  `mapstructure:"points_cost"`
	MinTier         string `mapstructure:"min_tier"`
	InStock         bool   `mapstructure:"in_stock"`
	LimitPerAccount int    `mapstructure:"limit_per_account"`
	Featured        bool   `mapstructure:"featured"`
}

// EarningRate Percent 与 Flat 二选一
type EarningRate struct {
	Source  string  `mapstructure:"source"`
	Percent float64 `mapstructure:"percent"`
	Flat    int64   `mapstructure:"flat"`
}

type StreakMilestone struct {
	Day   int   `mapstructure:"day"`
	Bonus int64 `mapstructure:"bonus"`
}

var GlobalConfig *Config

// Load 读取配置文件，环境变量 REWARDS_* 覆盖同名配置项
// configPath 为空时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REWARDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return cfg, nil
}

// LoadConfig 加载配置文件，失败直接退出
func LoadConfig(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	GlobalConfig = cfg
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("sqlite.path", "data/rewards.db")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic.ledger_events", "rewards.ledger")
	v.SetDefault("kafka.topic.stake_events", "rewards.stake")

	v.SetDefault("business.timezone", "UTC")
	v.SetDefault("business.points_expiry_days", 365)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.outbox_retention_days", 7)
	v.SetDefault("business.lock_timeout_seconds", 10)
	v.SetDefault("business.rate_limit_per_minute", 120)
	v.SetDefault("business.simulated_clock", false)

	v.SetDefault("economy.full_streak_days", 7)
}
