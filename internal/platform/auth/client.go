package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// NewHTTPClient returns a client that attaches platform credentials to every
// request. base carries transport and timeout settings and is used for token
// requests as well.
func NewHTTPClient(ctx context.Context, cfg ClientConfig, base *http.Client) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		base = http.DefaultClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var client *http.Client
	switch cfg.Mode {
	case ModeNone:
		return base, nil
	case ModeToken:
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: strings.TrimSpace(cfg.StaticToken),
			TokenType:   "Bearer",
		}))
	case ModeOIDC:
		provider, err := oidc.NewProvider(oidc.ClientContext(ctx, base), strings.TrimSpace(cfg.OIDCIssuerURL))
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			TokenURL:     provider.Endpoint().TokenURL,
			Scopes:       cfg.OIDCScopes,
		}
		client = cc.Client(ctx)
	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", cfg.Mode)
	}
	client.Timeout = base.Timeout
	return client, nil
}
