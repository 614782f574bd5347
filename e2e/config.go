package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_BADGER_DIR keeps the database of a run for inspection, a temporary directory is used otherwise
	BadgerDir string `envconfig:"E2E_BADGER_DIR"`
	// E2E_WAIT bounds every eventual assertion
	Wait time.Duration `envconfig:"E2E_WAIT" default:"2s"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_SUBSCRIPTION_BUFFER is the feed buffer of the local store
	SubscriptionBuffer int `envconfig:"E2E_SUBSCRIPTION_BUFFER" default:"64"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
