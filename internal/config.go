package internal

import (
	"fmt"
	"time"
)

type Config struct {
	LogLevel               string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath         string        `env:"BADGER_FILEPATH,required=true"`
	ReconciliationWindow   time.Duration `env:"RECONCILIATION_WINDOW,default=5s"`
	SubscriptionBufferSize int           `env:"SUBSCRIPTION_BUFFER_SIZE,default=64"`
	CommandBufferSize      int           `env:"COMMAND_BUFFER_SIZE,default=64"`
	EnrichConcurrency      int           `env:"ENRICH_CONCURRENCY,default=8"`
	SinkTimeout            time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval        time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval         time.Duration `env:"METRIC_INTERVAL,default=30s"`
	MaxBodyLength          int           `env:"MAX_BODY_LENGTH,default=2000"`
	CensoredDir            string        `env:"CENSORED_DIR"`
	CharReplacement        string        `env:"CHARACTER_REPLACEMENT,default=*"`
	AuthSecret             string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration      time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	GroupingGap            time.Duration `env:"GROUPING_GAP,default=5m"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
