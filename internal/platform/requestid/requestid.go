// Package requestid generates and carries request correlation ids.
package requestid

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the correlation header shared by the API server and the platform client.
const Header = "X-Request-Id"

type ctxKey struct{}

// New returns a random UUID. It fails only when the system entropy source does.
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func WithContext(ctx context.Context, id string) context.Context {
	if id = strings.TrimSpace(id); id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (string, bool) {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id, id != ""
}
