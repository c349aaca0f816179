package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// claimPolicy holds the registered-claim checks every access token must pass.
type claimPolicy struct {
	issuer    string
	audience  string
	skew      time.Duration
	algorithm jwa.SignatureAlgorithm
}

// check verifies algorithm, issuer, audience, time window and subject. The
// signature has already been verified by the caller.
func (p claimPolicy) check(tok jwt.Token, alg jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if p.algorithm != "" && alg != p.algorithm {
		return fmt.Errorf("auth: unexpected token algorithm %s", alg)
	}
	opts := []jwt.ValidateOption{jwt.WithClock(jwt.ClockFunc(func() time.Time { return now }))}
	if p.skew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(p.skew))
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}
	if err := jwt.Validate(tok, opts...); err != nil {
		return err
	}
	if strings.TrimSpace(tok.Subject()) == "" {
		return errors.New("auth: token has no subject")
	}
	return nil
}
