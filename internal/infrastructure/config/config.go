package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Runtime holds process-level knobs read from the environment.
type Runtime struct {
	// Logging
	LogLevel      string `env:"LOG_LEVEL"       envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT"      envDefault:"console"`
	LogFile       string `env:"LOG_FILE"        envDefault:"logs/bybit_mover.log"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"1"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`

	// Ledger
	LedgerPath string `env:"LEDGER_PATH" envDefault:"transfer_history.json"`

	// Redis (optional - leave empty to disable the cross-process sweep lock)
	RedisURL     string        `env:"REDIS_URL"      envDefault:""`
	SweepLockTTL time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"2m"`

	// Bybit
	BybitBaseURL   string        `env:"BYBIT_BASE_URL"   envDefault:""`
	BybitTestnet   bool          `env:"BYBIT_TESTNET"    envDefault:"false"`
	BybitTimeout   time.Duration `env:"BYBIT_TIMEOUT"    envDefault:"10s"`
	BybitRateLimit float64       `env:"BYBIT_RATE_LIMIT" envDefault:"5"`

	// HTTP report server (empty address disables it in run mode)
	HTTPAddr            string        `env:"HTTP_ADDR"             envDefault:""`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadRuntime loads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func LoadRuntime(dotenvPaths ...string) (*Runtime, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, p := range dotenvPaths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
	}

	cfg := &Runtime{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
