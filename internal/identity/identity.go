// Package identity verifies bearer tokens and yields the caller's identity.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/govtrack/backend/internal/cache"
	"github.com/govtrack/backend/internal/models"
)

var (
	// ErrMissingToken means no bearer token was presented.
	ErrMissingToken = errors.New("no token provided")
	// ErrInvalidToken means the token failed verification or has expired.
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier turns a bearer token into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

// Claims is the token payload.
type Claims struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens signed with a shared key.
type JWTVerifier struct {
	signingKey []byte
	issuer     string
}

// NewJWTVerifier returns a verifier for tokens from issuer. An empty issuer is not checked.
func NewJWTVerifier(signingKey, issuer string) *JWTVerifier {
	return &JWTVerifier{signingKey: []byte(signingKey), issuer: issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, fmt.Errorf("%w: token has expired", ErrInvalidToken)
		}
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return models.Identity{}, fmt.Errorf("%w: token has no uid", ErrInvalidToken)
	}

	id := models.Identity{
		UID:   uid,
		Email: claims.Email,
		Claims: map[string]any{
			"email_verified": claims.EmailVerified,
			"iss":            claims.Issuer,
		},
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

// Issue signs a token for uid/email. Used by tooling and tests.
func (v *JWTVerifier) Issue(uid, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UID:   uid,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(v.signingKey)
}

// Cached remembers successful verifications for the cache ttl, never past
// the token's own expiry.
type Cached struct {
	next  Verifier
	cache *cache.Identities
}

// NewCached wraps next with c.
func NewCached(next Verifier, c *cache.Identities) *Cached {
	return &Cached{next: next, cache: c}
}

func (c *Cached) Verify(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrMissingToken
	}
	key := tokenKey(token)
	if id, ok := c.cache.Get(key); ok {
		return id, nil
	}
	id, err := c.next.Verify(ctx, token)
	if err != nil {
		return models.Identity{}, err
	}
	c.cache.Put(key, id)
	return id, nil
}

func tokenKey(token string) string {
	s := sha256.Sum256([]byte(token))
	return hex.EncodeToString(s[:])
}
