package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/athebyme/gomarket-admin/internal/utils"
	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		RequestTimeout  time.Duration
	}

	// Resource бэкенд каталога товаров
	Resource struct {
		BaseURL   string
		Timeout   time.Duration
		UserAgent string
	}

	Editor struct {
		SessionTTL      time.Duration
		CleanupInterval time.Duration
		DiscardMode     string // rebaseline или revert
		MaxUploadBytes  int64
		SchemaPath      string // пусто - встроенная схема товара
		ListPath        string
		BrowserTTL      time.Duration
		PageSize        int
	}

	Redis struct {
		Enabled  bool
		Host     string
		Port     int
		Password string
		DB       int
		Prefix   string
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
	}

	SQLite struct {
		Path string
	}

	Audit struct {
		Driver string // postgres, sqlite или none
	}

	Kafka struct {
		Enabled     bool          `mapstructure:"enabled"`
		Brokers     []string      `mapstructure:"brokers"`
		GroupID     string        `mapstructure:"group_id"`
		EventsTopic string        `mapstructure:"events_topic"`
		PollTimeout time.Duration `mapstructure:"poll_timeout"`

		// Параметры темы событий при ее создании
		Partitions        int `mapstructure:"partitions"`
		ReplicationFactor int `mapstructure:"replication_factor"`
	}

	Metrics struct {
		Enabled bool
		Port    int `mapstructure:"port"` // порт /metrics воркера
	}

	Security struct {
		CORSAllowOrigins []string
		RateLimit        int
		RateLimitWindow  time.Duration
	}
}

var (
	ErrInvalidAuditDriver = errors.New("invalid audit driver")
	ErrKafkaBrokers       = errors.New("kafka is enabled but no brokers are configured")
	ErrKafkaTopic         = errors.New("kafka partitions and replication factor must be positive")
	ErrResourceURL        = errors.New("resource base url is empty")
)

// Load загружает конфигурацию из файла и переменных окружения.
// configPath может быть именем файла без расширения или путем к yaml файлу.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	switch {
	case filepath.Ext(configPath) != "":
		v.SetConfigFile(configPath)
	case configPath != "":
		v.SetConfigName(configPath)
	default:
		v.SetConfigName("config")
	}
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../../config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Без файла работаем на переменных окружения
	}

	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	if cfg.ENV == "" {
		cfg.ENV = "development"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if c.Resource.BaseURL == "" {
		return ErrResourceURL
	}
	switch c.Audit.Driver {
	case "postgres", "sqlite", "none", "":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuditDriver, c.Audit.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return ErrKafkaBrokers
	}
	if c.Kafka.Enabled && (c.Kafka.Partitions < 1 || c.Kafka.ReplicationFactor < 1) {
		return ErrKafkaTopic
	}
	return nil
}

// IsProduction сообщает, что сервис запущен в production окружении
func (c *Config) IsProduction() bool {
	return c.ENV == "production"
}

// PostgresDSN строка подключения к журналу в Postgres
func (c *Config) PostgresDSN() (string, error) {
	return utils.PostgresParams{
		Host:            c.Postgres.Host,
		Port:            c.Postgres.Port,
		User:            c.Postgres.User,
		Password:        c.Postgres.Password,
		DBName:          c.Postgres.DBName,
		SSLMode:         c.Postgres.SSLMode,
		PoolSize:        c.Postgres.PoolSize,
		ConnectTimeout:  c.Postgres.Timeout,
		ApplicationName: c.AppName,
	}.DSN()
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Основные настройки
	v.SetDefault("appName", "gomarket-admin")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	// Настройки сервера
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "60s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.requestTimeout", "30s")

	// Каталог товаров
	v.SetDefault("resource.baseURL", "http://localhost:8081/api/v1")
	v.SetDefault("resource.timeout", "15s")
	v.SetDefault("resource.userAgent", "gomarket-admin")

	// Редактор
	v.SetDefault("editor.sessionTTL", "2h")
	v.SetDefault("editor.cleanupInterval", "5m")
	v.SetDefault("editor.discardMode", "rebaseline")
	v.SetDefault("editor.maxUploadBytes", 20<<20)
	v.SetDefault("editor.schemaPath", "")
	v.SetDefault("editor.listPath", "/products")
	v.SetDefault("editor.browserTTL", "30m")
	v.SetDefault("editor.pageSize", 20)

	// Настройки Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "gomarket-admin")

	// Настройки Postgres
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "gomarket_admin")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)

	v.SetDefault("sqlite.path", "audit.db")
	v.SetDefault("audit.driver", "none")

	// Настройки Kafka
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "gomarket-admin-audit")
	v.SetDefault("kafka.events_topic", "editor.events")
	v.SetDefault("kafka.poll_timeout", "100ms")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replication_factor", 1)

	// Настройки метрик
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)

	// Настройки безопасности
	v.SetDefault("security.corsAllowOrigins", []string{"*"})
	v.SetDefault("security.rateLimit", 1000)
	v.SetDefault("security.rateLimitWindow", "1m")
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables(v *viper.Viper) {
	// Основные настройки
	_ = v.BindEnv("appName", "APP_NAME")
	_ = v.BindEnv("version", "APP_VERSION")
	_ = v.BindEnv("logLevel", "LOG_LEVEL")
	_ = v.BindEnv("env", "APP_ENV")

	// Настройки сервера
	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.readTimeout", "SERVER_READ_TIMEOUT")
	_ = v.BindEnv("server.writeTimeout", "SERVER_WRITE_TIMEOUT")
	_ = v.BindEnv("server.shutdownTimeout", "SERVER_SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("server.requestTimeout", "SERVER_REQUEST_TIMEOUT")

	// Каталог товаров
	_ = v.BindEnv("resource.baseURL", "RESOURCE_BASE_URL")
	_ = v.BindEnv("resource.timeout", "RESOURCE_TIMEOUT")
	_ = v.BindEnv("resource.userAgent", "RESOURCE_USER_AGENT")

	// Редактор
	_ = v.BindEnv("editor.sessionTTL", "EDITOR_SESSION_TTL")
	_ = v.BindEnv("editor.cleanupInterval", "EDITOR_CLEANUP_INTERVAL")
	_ = v.BindEnv("editor.discardMode", "EDITOR_DISCARD_MODE")
	_ = v.BindEnv("editor.maxUploadBytes", "EDITOR_MAX_UPLOAD_BYTES")
	_ = v.BindEnv("editor.schemaPath", "EDITOR_SCHEMA_PATH")
	_ = v.BindEnv("editor.listPath", "EDITOR_LIST_PATH")
	_ = v.BindEnv("editor.browserTTL", "EDITOR_BROWSER_TTL")
	_ = v.BindEnv("editor.pageSize", "EDITOR_PAGE_SIZE")

	// Настройки Redis
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("redis.prefix", "REDIS_PREFIX")

	// Настройки Postgres
	_ = v.BindEnv("postgres.host", "POSTGRES_HOST")
	_ = v.BindEnv("postgres.port", "POSTGRES_PORT")
	_ = v.BindEnv("postgres.user", "POSTGRES_USER")
	_ = v.BindEnv("postgres.password", "POSTGRES_PASSWORD")
	_ = v.BindEnv("postgres.dbname", "POSTGRES_DBNAME")
	_ = v.BindEnv("postgres.sslmode", "POSTGRES_SSLMODE")
	_ = v.BindEnv("postgres.timeout", "POSTGRES_TIMEOUT")
	_ = v.BindEnv("postgres.poolSize", "POSTGRES_POOL_SIZE")

	_ = v.BindEnv("sqlite.path", "SQLITE_PATH")
	_ = v.BindEnv("audit.driver", "AUDIT_DRIVER")

	// Настройки Kafka
	_ = v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	_ = v.BindEnv("kafka.events_topic", "KAFKA_EVENTS_TOPIC")
	_ = v.BindEnv("kafka.poll_timeout", "KAFKA_POLL_TIMEOUT")
	_ = v.BindEnv("kafka.partitions", "KAFKA_PARTITIONS")
	_ = v.BindEnv("kafka.replication_factor", "KAFKA_REPLICATION_FACTOR")

	// Настройки метрик
	_ = v.BindEnv("metrics.enabled", "METRICS_ENABLED")
	_ = v.BindEnv("metrics.port", "METRICS_PORT")

	// Настройки безопасности
	_ = v.BindEnv("security.corsAllowOrigins", "CORS_ALLOW_ORIGINS")
	_ = v.BindEnv("security.rateLimit", "RATE_LIMIT")
	_ = v.BindEnv("security.rateLimitWindow", "RATE_LIMIT_WINDOW")
}
