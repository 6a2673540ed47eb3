// Package auth issues and validates the signed, expiring tokens handed to
// clients: session tokens and email-verification tokens.
package auth

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/edumate/internal/common"
	"github.com/dmitrijs2005/edumate/internal/timex"
)

// Key selects which signing key (and which validation rules) Parse uses.
type Key int

const (
	SessionKey Key = iota
	VerificationKey
)

// Claims is the claim set carried by both token flavours. Verified is only
// meaningful for session tokens.
type Claims struct {
	jwt.RegisteredClaims
	Verified bool `json:"verified,omitempty"`
}

// CodecConfig holds the keys and lifetimes. Issuer and Audience are bound
// into session tokens only.
type CodecConfig struct {
	SessionKey           []byte
	VerificationKey      []byte
	Issuer               string
	Audience             string
	SessionTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
}

var errKeysMustDiffer = errors.New("session and verification keys must be set and differ")

// Codec signs and verifies tokens. Session and verification tokens use
// different keys and algorithms, so one can never be accepted as the other.
type Codec struct {
	cfg   CodecConfig
	clock timex.Clock
}

func NewCodec(cfg CodecConfig, clock timex.Clock) (*Codec, error) {
	if len(cfg.SessionKey) == 0 || len(cfg.VerificationKey) == 0 || bytes.Equal(cfg.SessionKey, cfg.VerificationKey) {
		return nil, errKeysMustDiffer
	}
	if cfg.SessionTokenTTL <= 0 {
		cfg.SessionTokenTTL = time.Hour
	}
	if cfg.VerificationTokenTTL <= 0 {
		cfg.VerificationTokenTTL = 10 * time.Minute
	}
	return &Codec{cfg: cfg, clock: clock}, nil
}

// IssueSession mints a session token for accountID.
func (c *Codec) IssueSession(accountID string, verified bool) (string, error) {
	now := c.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.SessionTokenTTL)),
		},
		Verified: verified,
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(c.cfg.SessionKey)
}

// IssueVerification mints a short-lived token proving control of the email
// address the account registered with.
func (c *Codec) IssueVerification(accountID string) (string, error) {
	now := c.clock.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.cfg.VerificationTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.VerificationKey)
}

// Parse validates tokenString against the given key. Every failure matches
// common.ErrInvalidToken; expired tokens also match common.ErrTokenExpired.
func (c *Codec) Parse(tokenString string, key Key) (*Claims, error) {
	var (
		secret []byte
		opts   = []jwt.ParserOption{
			jwt.WithTimeFunc(c.clock.Now),
			jwt.WithExpirationRequired(),
		}
	)

	switch key {
	case SessionKey:
		secret = c.cfg.SessionKey
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
		if c.cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
		}
		if c.cfg.Audience != "" {
			opts = append(opts, jwt.WithAudience(c.cfg.Audience))
		}
	case VerificationKey:
		secret = c.cfg.VerificationKey
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	default:
		return nil, fmt.Errorf("%w: unknown key", common.ErrInvalidToken)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Join(common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// ParseSession returns the subject and verified flag of a session token.
func (c *Codec) ParseSession(tokenString string) (*Claims, error) {
	return c.Parse(tokenString, SessionKey)
}

// ParseVerification returns the account id carried by a verification token.
func (c *Codec) ParseVerification(tokenString string) (string, error) {
	claims, err := c.Parse(tokenString, VerificationKey)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
