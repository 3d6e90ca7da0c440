package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	SessionDriverMemory = "memory"
	SessionDriverRedis  = "redis"
)

type Config struct {
	ServiceName string
	LoggerLevel string

	AppPort int

	StorageDriver string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	SessionDriver string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	KafkaBrokers    []string
	KafkaGroupTopic string

	TelegramBotToken string

	MatchTolerance     time.Duration
	BasePrice          int
	MaxGroupSize       int
	MatchMaxAttempts   int
	StoreTimeout       time.Duration
	SessionIdleTimeout time.Duration
	GroupJoinWindow    time.Duration
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "carpoolbot"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))

	cfg.StorageDriver = cast.ToString(getOrReturnDefault("STORAGE_DRIVER", StorageDriverPostgres))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "carpoolbot"))

	cfg.SessionDriver = cast.ToString(getOrReturnDefault("SESSION_DRIVER", SessionDriverMemory))

	cfg.RedisHost = cast.ToString(getOrReturnDefault("REDIS_HOST", "localhost"))
	cfg.RedisPort = cast.ToString(getOrReturnDefault("REDIS_PORT", "6379"))
	cfg.RedisPassword = cast.ToString(getOrReturnDefault("REDIS_PASSWORD", ""))

	cfg.KafkaBrokers = splitAndTrim(cast.ToString(getOrReturnDefault("KAFKA_BROKERS", "")))
	cfg.KafkaGroupTopic = cast.ToString(getOrReturnDefault("KAFKA_GROUP_TOPIC", "carpool-groups"))

	cfg.TelegramBotToken = cast.ToString(getOrReturnDefault("TG_BOT_TOKEN", ""))

	cfg.MatchTolerance = cast.ToDuration(getOrReturnDefault("MATCH_TOLERANCE", "10m"))
	cfg.BasePrice = cast.ToInt(getOrReturnDefault("BASE_PRICE", 200))
	cfg.MaxGroupSize = cast.ToInt(getOrReturnDefault("MAX_GROUP_SIZE", 4))
	cfg.MatchMaxAttempts = cast.ToInt(getOrReturnDefault("MATCH_MAX_ATTEMPTS", 5))
	cfg.StoreTimeout = cast.ToDuration(getOrReturnDefault("STORE_TIMEOUT", "3s"))
	cfg.SessionIdleTimeout = cast.ToDuration(getOrReturnDefault("SESSION_IDLE_TIMEOUT", "30m"))
	// 0 disables joining already formed groups.
	cfg.GroupJoinWindow = cast.ToDuration(getOrReturnDefault("GROUP_JOIN_WINDOW", "2h"))

	return cfg
}

// Validate reports the first setting that would make matching or fare
// splitting meaningless.
func (c Config) Validate() error {
	switch {
	case c.MatchTolerance <= 0:
		return fmt.Errorf("MATCH_TOLERANCE must be > 0, got %s", c.MatchTolerance)
	case c.BasePrice <= 0:
		return fmt.Errorf("BASE_PRICE must be > 0, got %d", c.BasePrice)
	case c.MaxGroupSize < 2:
		return fmt.Errorf("MAX_GROUP_SIZE must be >= 2, got %d", c.MaxGroupSize)
	case c.MatchMaxAttempts <= 0:
		return fmt.Errorf("MATCH_MAX_ATTEMPTS must be > 0, got %d", c.MatchMaxAttempts)
	case c.StoreTimeout <= 0:
		return fmt.Errorf("STORE_TIMEOUT must be > 0, got %s", c.StoreTimeout)
	}
	if c.StorageDriver != StorageDriverPostgres && c.StorageDriver != StorageDriverMemory {
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.SessionDriver != SessionDriverMemory && c.SessionDriver != SessionDriverRedis {
		return fmt.Errorf("unknown SESSION_DRIVER %q", c.SessionDriver)
	}
	return nil
}

func (c Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
	)
}

func (c Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(v string) []string {
	if v == "" {
		return nil
	}
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
