// Package jwtx reads claims off vendor-issued JWTs. The TCL cloud hands us
// tokens minted by its own infrastructure; we are a client, so we never hold
// the signing keys and can only inspect claims without verification. Expiry
// read this way is advisory scheduling input, not a security decision.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed reports a token that could not be parsed at all.
	ErrMalformed = errors.New("jwtx: malformed token")

	// ErrNoExpiry reports a token without an exp claim.
	ErrNoExpiry = errors.New("jwtx: token has no exp claim")
)

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// Expiry extracts the exp claim from a JWT without verifying its signature.
func Expiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, ErrMalformed
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrNoExpiry
	}

	return exp.Time, nil
}

// IssuedAt extracts the iat claim, falling back to the zero time when absent.
func IssuedAt(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return time.Time{}
	}

	return iat.Time
}

// Expired reports whether the token's exp claim is at or before now.
// Malformed tokens and tokens without an expiry count as expired.
func Expired(token string, now time.Time) bool {
	exp, err := Expiry(token)
	if err != nil {
		return true
	}
	return !exp.After(now)
}
