package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ProductionConfig {
	return &ProductionConfig{
		Database: DatabaseConfig{Host: "db", Port: 5432, Name: "pricing", User: "pricing", Password: "secret"},
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			IdleTimeout:    time.Second,
			RequestTimeout: time.Second,
		},
		Security: SecurityConfig{RateLimitWindow: time.Minute, GlobalRateLimit: 100, BargainRateLimit: 10},
		Logging:  LoggingConfig{Level: "info", Output: "stdout"},
		Pricing: PricingConfig{
			MinimumMargin:      decimal.NewFromInt(200),
			BargainSessionTTL:  10 * time.Minute,
			BargainMaxAttempts: 3,
			SessionRetention:   24 * time.Hour,
			DefaultCurrency:    "INR",
		},
		Scheduler: SchedulerConfig{Enabled: true, BargainSweepEvery: time.Minute, PromoExpiryEvery: time.Minute},
	}
}

func TestValidateProductionConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ProductionConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*ProductionConfig) {}},
		{name: "missing db password", mutate: func(c *ProductionConfig) { c.Database.Password = "" }, wantErr: "DB_PASSWORD is required"},
		{name: "negative margin", mutate: func(c *ProductionConfig) { c.Pricing.MinimumMargin = decimal.NewFromInt(-1) }, wantErr: "PRICING_MINIMUM_MARGIN"},
		{name: "zero session ttl", mutate: func(c *ProductionConfig) { c.Pricing.BargainSessionTTL = 0 }, wantErr: "PRICING_BARGAIN_SESSION_TTL"},
		{name: "retention shorter than ttl", mutate: func(c *ProductionConfig) { c.Pricing.SessionRetention = time.Minute }, wantErr: "PRICING_SESSION_RETENTION"},
		{name: "bad currency", mutate: func(c *ProductionConfig) { c.Pricing.DefaultCurrency = "RUPEE" }, wantErr: "PRICING_DEFAULT_CURRENCY"},
		{name: "kafka without brokers", mutate: func(c *ProductionConfig) { c.Kafka = KafkaConfig{Enabled: true, ReportTopic: "t"} }, wantErr: "KAFKA_BROKERS"},
		{name: "tls without cert", mutate: func(c *ProductionConfig) { c.Security.TLSEnabled = true }, wantErr: "TLS_CERT_FILE"},
		{name: "zero bargain rate limit", mutate: func(c *ProductionConfig) { c.Security.BargainRateLimit = 0 }, wantErr: "BARGAIN_RATE_LIMIT"},
		{name: "bad log level", mutate: func(c *ProductionConfig) { c.Logging.Level = "trace" }, wantErr: "LOG_LEVEL"},
		{name: "file output without path", mutate: func(c *ProductionConfig) { c.Logging.Output = "file" }, wantErr: "LOG_FILE_PATH"},
		{name: "scheduler without interval", mutate: func(c *ProductionConfig) { c.Scheduler.BargainSweepEvery = 0 }, wantErr: "SCHEDULER_BARGAIN_SWEEP_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateProductionConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateProductionConfig_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""
	cfg.Pricing.BargainMaxAttempts = -1

	err := ValidateProductionConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST is required")
	assert.Contains(t, err.Error(), "PRICING_BARGAIN_MAX_ATTEMPTS")
}

func TestLoadProductionConfig_PricingFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("PRICING_MINIMUM_MARGIN", "350.50")
	t.Setenv("PRICING_BARGAIN_SESSION_TTL", "5m")
	t.Setenv("PRICING_BARGAIN_MAX_ATTEMPTS", "5")
	t.Setenv("PRICING_FARE_SEED_BUCKET", "1h")
	t.Setenv("PRICING_DEFAULT_CURRENCY", "aed")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.True(t, cfg.Pricing.MinimumMargin.Equal(decimal.RequireFromString("350.50")))
	assert.Equal(t, 5*time.Minute, cfg.Pricing.BargainSessionTTL)
	assert.Equal(t, 5, cfg.Pricing.BargainMaxAttempts)
	assert.Equal(t, time.Hour, cfg.Pricing.FareSeedBucket)
	assert.Equal(t, "AED", cfg.Pricing.DefaultCurrency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadProductionConfig_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_PASSWORD=from-file\nPRICING_BARGAIN_MAX_ATTEMPTS=7\n"), 0o600))
	t.Setenv("PRICING_BARGAIN_MAX_ATTEMPTS", "2")
	// registered with t.Setenv so the value loaded from the file is restored afterwards
	t.Setenv("DB_PASSWORD", "")
	require.NoError(t, os.Unsetenv("DB_PASSWORD"))

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Database.Password)
	assert.Equal(t, 2, cfg.Pricing.BargainMaxAttempts)
}

func TestNewLogger_LevelAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.log")
	logger, closer := NewLogger(LoggingConfig{Level: "warn", Output: "file", FilePath: path, MaxSize: 1})

	logger.Info().Msg("dropped")
	logger.Warn().Str("module", "air").Msg("kept")
	require.NoError(t, closer.Close())

	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(bs, []byte("dropped")))
	assert.True(t, bytes.Contains(bs, []byte(`"module":"air"`)))
}
