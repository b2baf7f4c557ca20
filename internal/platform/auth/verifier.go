package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// Authenticator resolves the caller of an API request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (Identity, error)
}

// OIDCAuthenticator verifies issuer-signed bearer tokens.
type OIDCAuthenticator struct {
	verifier   *oidc.IDTokenVerifier
	rolesClaim string
	emailClaim string
}

func NewOIDCAuthenticator(ctx context.Context, cfg ServerConfig) (*OIDCAuthenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode != ModeOIDC {
		return nil, fmt.Errorf("oidc authenticator requires TRIALFLOW_API_AUTH_MODE=oidc (got %q)", cfg.Mode)
	}
	provider, err := oidc.NewProvider(ctx, strings.TrimSpace(cfg.OIDCIssuerURL))
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &OIDCAuthenticator{
		verifier:   provider.Verifier(&oidc.Config{ClientID: cfg.Audience}),
		rolesClaim: cfg.RolesClaim,
		emailClaim: cfg.EmailClaim,
	}, nil
}

func (a *OIDCAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	token, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	var claims map[string]any
	if err := token.Claims(&claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return identityFromClaims(token.Subject, claims, a.rolesClaim, a.emailClaim), nil
}

// AnonymousAuthenticator admits every request with full rights. It backs
// TRIALFLOW_API_AUTH_MODE=none.
type AnonymousAuthenticator struct{}

func (AnonymousAuthenticator) Authenticate(context.Context, *http.Request) (Identity, error) {
	return Identity{Subject: "anonymous", Roles: []string{RoleAdmin}}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func identityFromClaims(subject string, claims map[string]any, rolesClaim, emailClaim string) Identity {
	id := Identity{Subject: strings.TrimSpace(subject)}
	if email, ok := claims[emailClaim].(string); ok {
		id.Email = strings.TrimSpace(email)
	}
	switch roles := claims[rolesClaim].(type) {
	case string:
		id.Roles = parseCSV(roles)
	case []any:
		parts := make([]string, 0, len(roles))
		for _, role := range roles {
			if s, ok := role.(string); ok {
				parts = append(parts, s)
			}
		}
		id.Roles = parseCSV(strings.Join(parts, ","))
	}
	return id
}
