package config

import (
	"context"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	// PolicyFile optionally points at a TOML file overriding Policy.
	PolicyFile string `env:"MARKET_POLICY_FILE"`

	Mongo  MongoConfig
	Redis  RedisConfig
	Policy PolicyConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=market_ledger"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// PolicyConfig carries the marketplace arbitration knobs. Env vars set the
// baseline; the optional TOML policy file wins when present.
type PolicyConfig struct {
	// RejectionDurable decides whether rejecting a shipping bid removes it
	// from the ledger. Default false: rejection stays a view-side filter.
	RejectionDurable bool `env:"REJECTION_DURABLE, default=false" toml:"rejection_durable"`
	// NotifyWorkers is the notification dispatcher worker count.
	NotifyWorkers int `env:"NOTIFY_WORKERS, default=8" toml:"notify_workers"`
}

// Load reads configuration from environment variables using go-envconfig,
// then applies the TOML policy file when one is configured.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}

	if cfg.PolicyFile != "" {
		if _, err := toml.DecodeFile(cfg.PolicyFile, &cfg.Policy); err != nil {
			panic(fmt.Sprintf("config: failed to load policy file %s: %v", cfg.PolicyFile, err))
		}
	}

	return &cfg
}
