package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 应用配置
// 加载顺序：.env -> config.yaml -> 环境变量（PM_ 前缀，后者覆盖前者）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	AI       AIConfig       `mapstructure:"ai"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Wizard   WizardConfig   `mapstructure:"wizard"`
	Poll     PollConfig     `mapstructure:"poll"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug / release / test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig 市集后端
type BackendConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
	Debug      bool          `mapstructure:"debug"`
}

// CatalogConfig 桌游数据库
type CatalogConfig struct {
	Provider  string        `mapstructure:"provider"` // backend / bgg
	BGGURL    string        `mapstructure:"bgg_url"`
	BGGToken  string        `mapstructure:"bgg_token"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl"`
	DBTTL     time.Duration `mapstructure:"db_ttl"`
}

// AIConfig 识图与文本解析
type AIConfig struct {
	Provider      string        `mapstructure:"provider"` // backend / gemini
	GeminiAPIKey  string        `mapstructure:"gemini_api_key"`
	GeminiModel   string        `mapstructure:"gemini_model"`
	ScanCooldown  time.Duration `mapstructure:"scan_cooldown"`
	ParseCooldown time.Duration `mapstructure:"parse_cooldown"`
}

// DatabaseConfig DSN 为空时不启用数据库（缓存只在内存，AI 调用不落库）
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogSQL          bool          `mapstructure:"log_sql"`
}

func (c DatabaseConfig) Enabled() bool { return strings.TrimSpace(c.DSN) != "" }

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	Issuer          string        `mapstructure:"issuer"`
}

// WizardConfig 上架向导
type WizardConfig struct {
	EnrichInterval time.Duration `mapstructure:"enrich_interval"`
	DebounceDelay  time.Duration `mapstructure:"debounce_delay"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	CleanupSpec    string        `mapstructure:"cleanup_spec"`
}

// PollConfig 市集列表轮询
type PollConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Spec    string        `mapstructure:"spec"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ==================== 默认值 ====================

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.retry_count", 2)

	v.SetDefault("catalog.provider", "backend")
	v.SetDefault("catalog.bgg_url", "https://boardgamegeek.com/xmlapi2")
	v.SetDefault("catalog.memory_ttl", 30*time.Minute)
	v.SetDefault("catalog.db_ttl", 24*time.Hour)

	v.SetDefault("ai.provider", "backend")
	v.SetDefault("ai.gemini_model", "gemini-2.0-flash")
	v.SetDefault("ai.scan_cooldown", 5*time.Second)
	v.SetDefault("ai.parse_cooldown", 3*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_ttl", 2*time.Hour)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "pasarmalam")

	v.SetDefault("wizard.enrich_interval", 500*time.Millisecond)
	v.SetDefault("wizard.debounce_delay", 500*time.Millisecond)
	v.SetDefault("wizard.session_ttl", 30*time.Minute)
	v.SetDefault("wizard.cleanup_spec", "0 * * * * *")

	v.SetDefault("poll.enabled", true)
	v.SetDefault("poll.spec", "*/10 * * * * *")
	v.SetDefault("poll.timeout", 8*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// ==================== 加载 ====================

// Load 加载配置，path 为空时在当前目录和 ./config 下查找 config.yaml
func Load(path string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("PM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验取值范围
func (c *Config) Validate() error {
	switch c.Catalog.Provider {
	case "backend", "bgg":
	default:
		return fmt.Errorf("catalog.provider 只能是 backend 或 bgg，当前为 %q", c.Catalog.Provider)
	}
	switch c.AI.Provider {
	case "backend", "gemini":
	default:
		return fmt.Errorf("ai.provider 只能是 backend 或 gemini，当前为 %q", c.AI.Provider)
	}
	if c.AI.Provider == "gemini" && c.AI.GeminiAPIKey == "" {
		return errors.New("ai.provider 为 gemini 时必须设置 ai.gemini_api_key")
	}
	if c.Wizard.SessionTTL <= 0 {
		return errors.New("wizard.session_ttl 必须大于 0")
	}
	return nil
}
