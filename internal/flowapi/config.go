package flowapi

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/animus-labs/trialflow/internal/platform/env"
)

type Config struct {
	BaseURL string
	Project string
	Timeout time.Duration
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("FLOWS_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL: env.String("FLOWS_API_URL", ""),
		Project: env.String("FLOWS_PROJECT", ""),
		Timeout: timeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	raw := strings.TrimSpace(c.BaseURL)
	if raw == "" {
		return errors.New("FLOWS_API_URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("FLOWS_API_URL must be an absolute http(s) url (got %q)", raw)
	}
	if strings.TrimSpace(c.Project) == "" {
		return errors.New("FLOWS_PROJECT is required")
	}
	if c.Timeout <= 0 {
		return errors.New("FLOWS_HTTP_TIMEOUT must be positive")
	}
	return nil
}
