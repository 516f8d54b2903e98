package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failure classes. Callers rely on these being distinct:
// a token with the wrong segment count is malformed, a structurally valid
// token with a bad signature is invalid, and a validly signed token past
// its expiry is expired.
var (
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
	ErrInvalid   = errors.New("invalid token")
)

// Claims is the claim set carried by a session token.
type Claims struct {
	jwt.RegisteredClaims
	UserID           string `json:"id"`
	Email            string `json:"email"`
	SubscriptionTier string `json:"subscriptionTier"`
}

// Codec signs and verifies session tokens with a process-wide HS256 secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec creates a Codec. All issued tokens expire after ttl.
func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given user identity.
func (c *Codec) Issue(userID, email, tier string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		UserID:           userID,
		Email:            email,
		SubscriptionTier: tier,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify parses and validates a raw token string. Input that does not
// decompose into three dot-separated segments is rejected before any
// cryptographic work happens.
func (c *Codec) Verify(raw string) (*Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		default:
			return nil, ErrInvalid
		}
	}

	if !tok.Valid {
		return nil, ErrInvalid
	}

	return claims, nil
}
