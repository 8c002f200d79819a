package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is parsed from CLASSPOLL_* environment variables. Broker and Kafka
// addresses are optional; leaving them empty disables those bridges.
type Config struct {
	Addr string `env:"CLASSPOLL_ADDR" envDefault:":3000"`

	// Store selects the poll store backend: rethinkdb, redis or memory.
	Store        string   `env:"CLASSPOLL_STORE" envDefault:"rethinkdb"`
	RethinkHosts []string `env:"CLASSPOLL_DB_HOSTS" envDefault:"localhost:28015" envSeparator:","`
	RedisAddr    string   `env:"CLASSPOLL_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisAuth    string   `env:"CLASSPOLL_REDIS_AUTH"`

	BrokerAddr  string `env:"CLASSPOLL_BROKER_HOST"`
	BrokerUser  string `env:"CLASSPOLL_BROKER_USER"`
	BrokerPass  string `env:"CLASSPOLL_BROKER_PASS"`
	BrokerTopic string `env:"CLASSPOLL_BROKER_TOPIC" envDefault:"/topic/classpoll_broadcast"`

	KafkaBrokers []string `env:"CLASSPOLL_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"CLASSPOLL_KAFKA_TOPIC" envDefault:"classpoll.events"`

	JWTSecret string        `env:"CLASSPOLL_JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"CLASSPOLL_TOKEN_TTL" envDefault:"24h"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
