package config

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	TelegramBotToken  string        `env:"TELEGRAM_BOT_TOKEN,required"`
	DBHost            string        `env:"DB_HOST,required"`
	DBPort            int           `env:"DB_PORT,default=5432"`
	DBUser            string        `env:"DB_USER,required"`
	DBPassword        string        `env:"DB_PASSWORD,required"`
	DBName            string        `env:"DB_NAME,required"`
	DBSSLMode         string        `env:"DB_SSLMODE,default=disable"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
	DBSlowQuery       time.Duration `env:"DB_SLOW_QUERY,default=200ms"`

	HyperliquidWSURL       string        `env:"HYPERLIQUID_WS_URL,default=wss://api.hyperliquid.xyz/ws"`
	HyperliquidInfoURL     string        `env:"HYPERLIQUID_INFO_URL,default=https://api.hyperliquid.xyz/info"`
	HyperliquidInfoTimeout time.Duration `env:"HYPERLIQUID_INFO_TIMEOUT,default=10s"`
	HyperliquidRateLimit   float64       `env:"HYPERLIQUID_INFO_RATE_LIMIT,default=10"`
	HyperliquidRateBurst   int           `env:"HYPERLIQUID_INFO_BURST,default=5"`

	StreamHeartbeatInterval   time.Duration `env:"STREAM_HEARTBEAT_INTERVAL,default=30s"`
	StreamReconnectBaseDelay  time.Duration `env:"STREAM_RECONNECT_BASE_DELAY,default=5s"`
	StreamReconnectMaxAttempt int           `env:"STREAM_RECONNECT_MAX_ATTEMPTS,default=5"`
	StreamReadTimeout         time.Duration `env:"STREAM_READ_TIMEOUT,default=0s"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL,default=30s"`
	SnapshotTTL    time.Duration `env:"SNAPSHOT_TTL,default=5s"`
	PriceInboxSize int           `env:"PRICE_INBOX_SIZE,default=64"`
	FillInboxSize  int           `env:"FILL_INBOX_SIZE,default=256"`

	TelegramPollTimeout int    `env:"TELEGRAM_POLL_TIMEOUT,default=60"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
	LogEncoding         string `env:"LOG_ENCODING,default=json"`
}

// Load reads configuration from the environment. The given env files (or .env
// in the working directory when none are given) are applied first when present;
// real environment variables win.
func Load(ctx context.Context, envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
