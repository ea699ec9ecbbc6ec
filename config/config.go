package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
// Optional backends (Redis, MySQL, MinIO, Telegram) stay disabled while their address is empty.
type Config struct {
	ListenAddr string

	// 音频节点
	NodeWSURL    string // e.g. ws://127.0.0.1:2333
	NodeHTTPURL  string // e.g. http://127.0.0.1:2333
	NodePassword string
	NodeUserID   string // 机器人用户ID，节点握手需要
	NodeShards   int
	// 命令与事件
	CommandTimeout time.Duration
	WorkerIdle     time.Duration

	// API 鉴权
	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	// 日志
	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int

	// Redis配置（队列镜像）
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MySQL配置（播放记录）
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// MinIO配置（歌单导出）
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// Telegram 通知
	TelegramToken string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("5s", "2m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment without touching .env.
func FromEnv() *Config {
	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		NodeWSURL:    getEnv("NODE_WS_URL", "ws://127.0.0.1:2333"),
		NodeHTTPURL:  getEnv("NODE_HTTP_URL", "http://127.0.0.1:2333"),
		NodePassword: getEnv("NODE_PASSWORD", "youshallnotpass"),
		NodeUserID:   getEnv("NODE_USER_ID", ""),
		NodeShards:   getEnvInt("NODE_SHARDS", 1),

		CommandTimeout: getEnvDuration("COMMAND_TIMEOUT", 10*time.Second),
		WorkerIdle:     getEnvDuration("EVENT_WORKER_IDLE", 5*time.Minute),

		JWTSecret: os.Getenv("JWT_SECRET"), // 不提供默认值
		JWTIssuer: getEnv("JWT_ISSUER", "guildfm"),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "guildfm"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "guildfm"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),
	}
}

// RedisEnabled 是否配置了 Redis
func (c *Config) RedisEnabled() bool { return c.RedisHost != "" }

// DBEnabled 是否配置了 MySQL
func (c *Config) DBEnabled() bool { return c.DBHost != "" }

// MinioEnabled 是否配置了 MinIO
func (c *Config) MinioEnabled() bool { return c.MinioEndpoint != "" }

// TelegramEnabled 是否配置了 Telegram
func (c *Config) TelegramEnabled() bool { return c.TelegramToken != "" }
