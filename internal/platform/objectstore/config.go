// Package objectstore configures the S3-compatible store holding archived flow
// definitions.
package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/trialflow/internal/platform/env"
)

type Config struct {
	// Endpoint is host:port. An empty endpoint disables archiving.
	Endpoint          string
	AccessKey         string
	SecretKey         string
	Region            string
	UseSSL            bool
	BucketDefinitions string
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("TRIALFLOW_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Endpoint:          env.String("TRIALFLOW_MINIO_ENDPOINT", ""),
		AccessKey:         env.String("TRIALFLOW_MINIO_ACCESS_KEY", ""),
		SecretKey:         env.String("TRIALFLOW_MINIO_SECRET_KEY", ""),
		Region:            env.String("TRIALFLOW_MINIO_REGION", "us-east-1"),
		UseSSL:            useSSL,
		BucketDefinitions: env.String("TRIALFLOW_MINIO_BUCKET_DEFINITIONS", "flow-definitions"),
	}
	if !cfg.Enabled() {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("TRIALFLOW_MINIO_ENDPOINT is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("TRIALFLOW_MINIO_ACCESS_KEY is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("TRIALFLOW_MINIO_SECRET_KEY is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("TRIALFLOW_MINIO_REGION is required")
	}
	if strings.TrimSpace(c.BucketDefinitions) == "" {
		return errors.New("TRIALFLOW_MINIO_BUCKET_DEFINITIONS is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
