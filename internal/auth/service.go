package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/storefront-api/internal/common"
)

const (
	claimEmail = "email"
	claimRoles = "roles"
)

// Config configures bearer token verification.
type Config struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Service verifies access tokens issued by the identity provider. The
// storefront never issues tokens for clients; Sign exists for tooling and tests.
type Service struct {
	secret    []byte
	now       func() time.Time
	policy claimPolicy
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Service{
		secret: []byte(secret),
		now:    time.Now,
		policy: claimPolicy{
			issuer:    strings.TrimSpace(cfg.Issuer),
			audience:  strings.TrimSpace(cfg.Audience),
			skew:      clockSkew,
			algorithm: jwa.HS256,
		},
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func unauthorized(msg string, err error) error {
	return common.NewAppError("UNAUTHORIZED", msg, http.StatusUnauthorized, err)
}

// ParseAccessToken validates an access token and returns the principal it names.
func (s *Service) ParseAccessToken(token string) (common.Principal, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Principal{}, unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	if s.policy.algorithm != "" && algorithm != s.policy.algorithm {
		return common.Principal{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	if err := s.policy.check(parsed, algorithm, s.now()); err != nil {
		return common.Principal{}, unauthorized("invalid token", err)
	}
	p := common.Principal{BuyerID: strings.TrimSpace(parsed.Subject()), Roles: rolesClaim(parsed)}
	if v, ok := parsed.Get(claimEmail); ok {
		if email, ok := v.(string); ok {
			p.Email = email
		}
	}
	return p, nil
}

// Sign issues an HS256 token for p valid for ttl.
func (s *Service) Sign(p common.Principal, ttl time.Duration) (string, error) {
	now := s.now()
	builder := jwt.NewBuilder().
		Subject(p.BuyerID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(ttl))
	if s.policy.issuer != "" {
		builder = builder.Issuer(s.policy.issuer)
	}
	if s.policy.audience != "" {
		builder = builder.Audience([]string{s.policy.audience})
	}
	if p.Email != "" {
		builder = builder.Claim(claimEmail, p.Email)
	}
	if len(p.Roles) > 0 {
		builder = builder.Claim(claimRoles, p.Roles)
	}
	token, err := builder.Build()
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", err
	}
	return string(signed), nil
}

func rolesClaim(tok jwt.Token) []string {
	v, ok := tok.Get(claimRoles)
	if !ok {
		return nil
	}
	switch roles := v.(type) {
	case []string:
		return roles
	case []any:
		out := make([]string, 0, len(roles))
		for _, r := range roles {
			if s, ok := r.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(strings.ReplaceAll(roles, ",", " "))
	default:
		return nil
	}
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" || alg == jwa.NoSignature {
			return "", errors.New("auth: token missing or unsigned algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", errors.New("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}
