// Package auth issues and validates signed session invites. An invite is a
// short-lived HS256 JWT whose subject is the session code, so an invite
// link can be shared without exposing a guessable URL scheme beyond the
// code itself.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultInviteTTL = 12 * time.Hour

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSessionCode   = errors.New("session code must be provided")
)

// InviteIssuerConfig configures the invite JWT issuer.
type InviteIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	InviteTTL     time.Duration
	Clock         func() time.Time
}

// InviteIssuer mints and validates session invite tokens.
type InviteIssuer struct {
	config InviteIssuerConfig
	clock  func() time.Time
}

// NewInviteIssuer constructs an InviteIssuer with sane defaults.
func NewInviteIssuer(cfg InviteIssuerConfig) *InviteIssuer {
	ttl := cfg.InviteTTL
	if ttl <= 0 {
		ttl = defaultInviteTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &InviteIssuer{
		config: InviteIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			InviteTTL:     ttl,
			Clock:         clock,
		},
		clock: clock,
	}
}

// IssueInvite produces a signed invite token for the session code and its
// expiry in seconds.
func (i *InviteIssuer) IssueInvite(sessionCode string) (string, int64, error) {
	if len(i.config.SigningSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if sessionCode == "" {
		return "", 0, errMissingSessionCode
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.InviteTTL).UTC()

	registered := jwt.RegisteredClaims{
		Subject:   sessionCode,
		Issuer:    i.config.Issuer,
		Audience:  []string{i.config.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateInvite ensures the invite is well formed and unexpired and
// returns the session code it was issued for.
func (i *InviteIssuer) ValidateInvite(tokenString string) (string, error) {
	if len(i.config.SigningSecret) == 0 {
		return "", errMissingSigningSecret
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSessionCode
	}
	return claims.Subject, nil
}
