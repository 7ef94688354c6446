package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Credentials holds secrets and overrides read from the environment
type Credentials struct {
	// Token authenticates the bot session and invite lookups
	Token string `env:"BOOSTSYNC_TOKEN,required,notEmpty"`

	// OperatorID overrides admin.operatorID from the config file
	OperatorID string `env:"BOOSTSYNC_OPERATOR_ID"`
}

// LoadCredentials reads Credentials from the process environment
func LoadCredentials() (*Credentials, error) {
	return loadCredentials(env.Options{})
}

func loadCredentials(opts env.Options) (*Credentials, error) {
	var creds Credentials
	if err := env.ParseWithOptions(&creds, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &creds, nil
}
