package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN       string `env:"DATABASE_DSN,required=true"`
	RedisURL          string `env:"REDIS_URL,required=true"`
	MailerDriver      string `env:"MAILER_DRIVER,default=smtp"`
	SMTPHost          string `env:"SMTP_HOST,default=localhost"`
	SMTPPort          int    `env:"SMTP_PORT,default=587"`
	SMTPUsername      string `env:"SMTP_USERNAME"`
	SMTPPassword      string `env:"SMTP_PASSWORD"`
	SMTPFrom          string `env:"SMTP_FROM,default=no-reply@rentaplace.local"`
	MailAPIURL        string `env:"MAIL_API_URL"`
	SendTimeoutSec    int    `env:"SEND_TIMEOUT_SEC,default=30"`
	MaxRetries        int    `env:"MAX_RETRIES,default=3"`
	PollIntervalSec   int    `env:"POLL_INTERVAL_SEC,default=30"`
	PollBatchLimit    int    `env:"POLL_BATCH_LIMIT,default=10"`
	EngineConcurrency int    `env:"ENGINE_CONCURRENCY,default=4"`
	SendRatePerSec    int    `env:"SEND_RATE_PER_SEC,default=10"`
	APIPort           int    `env:"API_PORT,default=8080"`
	LogLevel          string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
