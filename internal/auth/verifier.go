package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"session-service/internal/config"
	"session-service/internal/util"
)

// ErrInvalidCredential is returned for any bearer token that cannot be
// verified: bad signature, wrong issuer or audience, expired, malformed.
var ErrInvalidCredential = errors.New("invalid authentication credentials")

// Verifier validates a bearer credential and extracts the stable
// subject identifier.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (userID string, err error)
}

// JWKSVerifier verifies RS256 tokens against the identity provider's
// published key set. The key set is fetched from the well-known JWKS
// endpoint and refreshed in the background, so key rotation is picked
// up without a process restart.
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
}

// NewJWKSVerifier fetches the provider's JWKS and starts the background
// refresh. The passed context bounds the lifetime of the refresh loop.
func NewJWKSVerifier(ctx context.Context, cfg *config.Config) (*JWKSVerifier, error) {
	jwksURL := cfg.JWKSURL()

	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}

	util.Info("JWKS verifier initialized",
		zap.String("jwks_url", jwksURL),
		zap.String("audience", cfg.Auth.Audience))

	return &JWKSVerifier{
		keys:     keys,
		issuer:   cfg.Auth.Domain,
		audience: cfg.Auth.Audience,
	}, nil
}

// Verify checks signature, issuer, audience and expiry, and returns the
// subject claim. Every failure collapses into ErrInvalidCredential; the
// caller only needs to know the credential was rejected.
func (v *JWKSVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	token, err := jwt.Parse(rawToken, v.keys.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		util.Debug("Token verification failed", zap.Error(err))
		return "", ErrInvalidCredential
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrInvalidCredential
	}

	return subject, nil
}
