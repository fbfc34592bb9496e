package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	AWS       AWSConfig       `json:"aws"`
	Logger    LoggerConfig    `json:"logger"`
	Promo     PromoConfig     `json:"promo"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Stats     StatsConfig     `json:"stats"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Notifications string `json:"notifications"`
	PromoEvents   string `json:"promo_events"`
}

// AWSConfig описывает подключение к SNS/SQS (в dev-окружении localstack).
type AWSConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SNSEndpointURL  string `json:"sns_endpoint_url"`
	SQSEndpointURL  string `json:"sqs_endpoint_url"`
	PromoTopicARN   string `json:"promo_topic_arn"`
	QueueURL        string `json:"queue_url"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// PromoConfig хранит параметры промо-акций, резервов и рассылки.
type PromoConfig struct {
	Timezone              string  `json:"timezone"`
	MaxDistanceKm         float64 `json:"max_distance_km"`
	ReservationHoldSecond int     `json:"reservation_hold_seconds"`
	Publisher             string  `json:"publisher"` // kafka | sns
	RetryFailedSameDay    bool    `json:"retry_failed_same_day"`
}

// SchedulerConfig описывает интервалы периодических задач.
type SchedulerConfig struct {
	Enabled                bool `json:"enabled"`
	ActivationScanSeconds  int  `json:"activation_scan_seconds"`
	ExpiryCleanupSeconds   int  `json:"expiry_cleanup_seconds"`
	QueueDrainSeconds      int  `json:"queue_drain_seconds"`
	QueueMaxMessages       int  `json:"queue_max_messages"`
	QueueWaitSeconds       int  `json:"queue_wait_seconds"`
	LockTTLSeconds         int  `json:"lock_ttl_seconds"`
	JobTimeoutSeconds      int  `json:"job_timeout_seconds"`
	DisableDistributedLock bool `json:"disable_distributed_lock"`
}

// StatsConfig хранит настройки статистики уведомлений
type StatsConfig struct {
	CacheTTLMinutes       int `json:"cache_ttl_minutes"`
	DefaultDays           int `json:"default_days"`
	MaxDays               int `json:"max_days"`
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled       bool   `json:"enabled"`
	Requests      int    `json:"requests"`
	WindowSeconds int    `json:"window_seconds"`
	KeyPrefix     string `json:"key_prefix"`
}

// Load загружает конфигурацию из переменных окружения (и .env, если он есть)
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "promo_user"),
			Password: getEnv("DB_PASSWORD", "promo_pass"),
			DBName:   getEnv("DB_NAME", "flash_promo"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "flash-promo-service"),
			Topics: Topics{
				Notifications: getEnv("KAFKA_TOPIC_NOTIFICATIONS", "flash-promo-notifications"),
				PromoEvents:   getEnv("KAFKA_TOPIC_PROMO_EVENTS", "promo-events"),
			},
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_DEFAULT_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", "test"),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", "test"),
			SNSEndpointURL:  getEnv("AWS_SNS_ENDPOINT_URL", ""),
			SQSEndpointURL:  getEnv("AWS_SQS_ENDPOINT_URL", ""),
			PromoTopicARN:   getEnv("FLASH_PROMO_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:flash-promo-notifications"),
			QueueURL:        getEnv("FLASH_PROMO_QUEUE_URL", ""),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Promo: PromoConfig{
			Timezone:              getEnv("PROMO_TIMEZONE", "UTC"),
			MaxDistanceKm:         getEnvAsFloat("PROMO_MAX_DISTANCE_KM", 2.0),
			ReservationHoldSecond: getEnvAsInt("RESERVATION_HOLD_SECONDS", 60),
			Publisher:             getEnv("NOTIFICATION_PUBLISHER", "kafka"),
			RetryFailedSameDay:    getEnvAsBool("DISPATCH_RETRY_FAILED_SAME_DAY", false),
		},
		Scheduler: SchedulerConfig{
			Enabled:                getEnvAsBool("SCHEDULER_ENABLED", true),
			ActivationScanSeconds:  getEnvAsInt("SCHEDULER_ACTIVATION_SCAN_SECONDS", 60),
			ExpiryCleanupSeconds:   getEnvAsInt("SCHEDULER_EXPIRY_CLEANUP_SECONDS", 3600),
			QueueDrainSeconds:      getEnvAsInt("SCHEDULER_QUEUE_DRAIN_SECONDS", 30),
			QueueMaxMessages:       getEnvAsInt("SCHEDULER_QUEUE_MAX_MESSAGES", 10),
			QueueWaitSeconds:       getEnvAsInt("SCHEDULER_QUEUE_WAIT_SECONDS", 20),
			LockTTLSeconds:         getEnvAsInt("SCHEDULER_LOCK_TTL_SECONDS", 55),
			JobTimeoutSeconds:      getEnvAsInt("SCHEDULER_JOB_TIMEOUT_SECONDS", 50),
			DisableDistributedLock: getEnvAsBool("SCHEDULER_DISABLE_LOCK", false),
		},
		Stats: StatsConfig{
			CacheTTLMinutes:       getEnvAsInt("STATS_CACHE_TTL_MINUTES", 5),
			DefaultDays:           getEnvAsInt("STATS_DEFAULT_DAYS", 30),
			MaxDays:               getEnvAsInt("STATS_MAX_DAYS", 365),
			RequestTimeoutSeconds: getEnvAsInt("STATS_REQUEST_TIMEOUT_SECONDS", 5),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:     getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat получает значение переменной окружения как float64 с значением по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
