package common

import (
	"context"
	"strings"
)

type ctxKey string

const principalKey ctxKey = "auth/principal"

// Principal is the verified identity attached to a request.
type Principal struct {
	BuyerID string
	Email   string
	Roles   []string
}

// HasRole reports whether the principal carries role (case-insensitive).
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// WithPrincipal stores the authenticated principal on the provided context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated principal from the context if present.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.BuyerID == "" {
		return Principal{}, false
	}
	return p, true
}

// BuyerID extracts the authenticated buyer identifier from the context if present.
func BuyerID(ctx context.Context) (string, bool) {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return "", false
	}
	return p.BuyerID, true
}
