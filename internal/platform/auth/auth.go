// Package auth authenticates trialflow against the orchestration platform and
// authenticates callers of the trialflow API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/trialflow/internal/platform/env"
)

type Mode string

const (
	// ModeOIDC uses the client-credentials grant against the issuer's token
	// endpoint (client side) or verifies issuer-signed bearer tokens (server side).
	ModeOIDC Mode = "oidc"
	// ModeToken sends a static bearer token. Client side only.
	ModeToken Mode = "token"
	ModeNone  Mode = "none"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// ClientConfig configures how trialflow authenticates to the platform API.
type ClientConfig struct {
	Mode             Mode
	OIDCIssuerURL    string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCScopes       []string
	StaticToken      string
}

func ClientConfigFromEnv() (ClientConfig, error) {
	mode, err := parseMode("FLOWS_AUTH_MODE", env.String("FLOWS_AUTH_MODE", string(ModeNone)), ModeOIDC, ModeToken, ModeNone)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg := ClientConfig{
		Mode:             mode,
		OIDCIssuerURL:    env.String("OIDC_ISSUER_URL", ""),
		OIDCClientID:     env.String("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: env.String("OIDC_CLIENT_SECRET", ""),
		OIDCScopes:       env.Strings("OIDC_SCOPES", []string{"openid"}),
		StaticToken:      env.String("FLOWS_API_TOKEN", ""),
	}
	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func (c ClientConfig) Validate() error {
	switch c.Mode {
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("OIDC_ISSUER_URL is required when FLOWS_AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.OIDCClientID) == "" {
			return errors.New("OIDC_CLIENT_ID is required when FLOWS_AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.OIDCClientSecret) == "" {
			return errors.New("OIDC_CLIENT_SECRET is required when FLOWS_AUTH_MODE=oidc")
		}
	case ModeToken:
		if strings.TrimSpace(c.StaticToken) == "" {
			return errors.New("FLOWS_API_TOKEN is required when FLOWS_AUTH_MODE=token")
		}
	case ModeNone:
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Mode)
	}
	return nil
}

// ServerConfig configures authentication of callers of the trialflow API.
type ServerConfig struct {
	Mode          Mode
	OIDCIssuerURL string
	Audience      string
	RolesClaim    string
	EmailClaim    string
}

func ServerConfigFromEnv() (ServerConfig, error) {
	mode, err := parseMode("TRIALFLOW_API_AUTH_MODE", env.String("TRIALFLOW_API_AUTH_MODE", string(ModeNone)), ModeOIDC, ModeNone)
	if err != nil {
		return ServerConfig{}, err
	}
	cfg := ServerConfig{
		Mode:          mode,
		OIDCIssuerURL: env.String("OIDC_ISSUER_URL", ""),
		Audience:      env.String("TRIALFLOW_API_AUDIENCE", env.String("OIDC_CLIENT_ID", "")),
		RolesClaim:    env.String("AUTH_ROLES_CLAIM", "roles"),
		EmailClaim:    env.String("AUTH_EMAIL_CLAIM", "email"),
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (c ServerConfig) Validate() error {
	switch c.Mode {
	case ModeOIDC:
		if strings.TrimSpace(c.OIDCIssuerURL) == "" {
			return errors.New("OIDC_ISSUER_URL is required when TRIALFLOW_API_AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.Audience) == "" {
			return errors.New("TRIALFLOW_API_AUDIENCE is required when TRIALFLOW_API_AUTH_MODE=oidc")
		}
		if strings.TrimSpace(c.RolesClaim) == "" {
			return errors.New("AUTH_ROLES_CLAIM is required")
		}
	case ModeNone:
	default:
		return fmt.Errorf("unsupported auth mode: %q", c.Mode)
	}
	return nil
}

func parseMode(key, raw string, allowed ...Mode) (Mode, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	names := make([]string, 0, len(allowed))
	for _, m := range allowed {
		if raw == string(m) {
			return m, nil
		}
		names = append(names, string(m))
	}
	return "", fmt.Errorf("%s must be one of: %s (got %q)", key, strings.Join(names, ", "), raw)
}

// Identity is an authenticated API caller.
type Identity struct {
	Subject string
	Email   string
	Roles   []string
}

type ctxKeyIdentity struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity{}, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity{}).(Identity)
	return id, ok
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.ToLower(strings.TrimSpace(part))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
