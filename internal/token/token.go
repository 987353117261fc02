// Package token issues and validates bearer tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, has a wrong signature or a wrong type.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken ...
	ErrExpiredToken = errors.New("token has expired")
	// ErrRevokedToken ...
	ErrRevokedToken = errors.New("token has been revoked")
)

// Type is a kind of token.
type Type string

const (
	// Access tokens authenticate requests.
	Access Type = "access"
	// Refresh tokens are exchanged for new access tokens.
	Refresh Type = "refresh"
)

// Claims represents token's claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"user_id"`
	Type   Type      `json:"token_type"`
}

// Pair ...
type Pair struct {
	Access  string
	Refresh string
}

// Revoker keeps identifiers of revoked tokens until they expire.
type Revoker interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Issuer signs tokens with HS256.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoker    Revoker
}

// NewIssuer creates new instance of Issuer.
func NewIssuer(secret []byte, accessTTL, refreshTTL time.Duration, revoker Revoker) *Issuer {
	return &Issuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		revoker:    revoker,
	}
}

// Issue creates access and refresh tokens for the user.
func (i *Issuer) Issue(userID uuid.UUID) (*Pair, error) {
	access, err := i.sign(userID, Access, i.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh, err := i.sign(userID, Refresh, i.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &Pair{
		Access:  access,
		Refresh: refresh,
	}, nil
}

// Validate checks token's signature, expiration, type and revocation.
func (i *Issuer) Validate(ctx context.Context, raw string, typ Type) (*Claims, error) {
	claims, err := i.parse(raw)
	if err != nil {
		return nil, err
	}

	if claims.Type != typ {
		return nil, ErrInvalidToken
	}

	revoked, err := i.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// Refresh exchanges a valid refresh token to a new access token.
func (i *Issuer) Refresh(ctx context.Context, refresh string) (string, error) {
	claims, err := i.Validate(ctx, refresh, Refresh)
	if err != nil {
		return "", err
	}

	access, err := i.sign(claims.UserID, Access, i.accessTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return access, nil
}

// Revoke revokes a token of any type. Expired tokens are ignored.
func (i *Issuer) Revoke(ctx context.Context, raw string) error {
	var claims Claims

	if _, err := jwt.ParseWithClaims(raw, &claims, i.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return ErrInvalidToken
	}

	if claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalidToken
	}

	if !claims.ExpiresAt.After(time.Now()) {
		return nil
	}

	if err := i.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

func (i *Issuer) sign(userID uuid.UUID, typ Type, ttl time.Duration) (string, error) {
	now := time.Now()

	return jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Type:   typ,
	}).SignedString(i.secret)
}

func (i *Issuer) parse(raw string) (*Claims, error) {
	var claims Claims

	token, err := jwt.ParseWithClaims(raw, &claims, i.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}

func (i *Issuer) key(*jwt.Token) (interface{}, error) {
	return i.secret, nil
}

// IsRejected reports whether err means the token itself was not accepted.
func IsRejected(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrRevokedToken)
}
