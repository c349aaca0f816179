package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func TestClaimPolicyCheck(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := claimPolicy{issuer: "identity", audience: "storefront", skew: time.Second, algorithm: jwa.HS256}

	build := func(mod func(*jwt.Builder) *jwt.Builder) jwt.Token {
		b := jwt.NewBuilder().
			Issuer("identity").
			Audience([]string{"storefront"}).
			Subject("buyer-1").
			IssuedAt(now).
			NotBefore(now).
			Expiration(now.Add(time.Minute))
		if mod != nil {
			b = mod(b)
		}
		tok, err := b.Build()
		require.NoError(t, err)
		return tok
	}

	cases := []struct {
		name    string
		tok     jwt.Token
		alg     jwa.SignatureAlgorithm
		wantErr bool
	}{
		{"valid", build(nil), jwa.HS256, false},
		{"issuer mismatch", build(func(b *jwt.Builder) *jwt.Builder { return b.Issuer("other") }), jwa.HS256, true},
		{"audience mismatch", build(func(b *jwt.Builder) *jwt.Builder { return b.Audience([]string{"admin"}) }), jwa.HS256, true},
		{"expired", build(func(b *jwt.Builder) *jwt.Builder { return b.Expiration(now.Add(-time.Minute)) }), jwa.HS256, true},
		{"not yet valid", build(func(b *jwt.Builder) *jwt.Builder { return b.NotBefore(now.Add(5 * time.Minute)) }), jwa.HS256, true},
		{"wrong algorithm", build(nil), jwa.RS256, true},
		{"blank subject", build(func(b *jwt.Builder) *jwt.Builder { return b.Subject(" ") }), jwa.HS256, true},
		{"nil token", nil, jwa.HS256, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.check(tc.tok, tc.alg, now)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseAccessTokenRejectsOtherAlgorithm(t *testing.T) {
	svc := newTestService(t)
	tok, err := jwt.NewBuilder().
		Issuer("identity").
		Audience([]string{"storefront"}).
		Subject("buyer-1").
		Expiration(time.Now().Add(time.Minute)).
		Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, []byte("test-secret")))
	require.NoError(t, err)

	_, err = svc.ParseAccessToken(string(signed))
	require.Error(t, err)
}
