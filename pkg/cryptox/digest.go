// Package cryptox holds the digest primitives the TCL cloud protocol
// requires. The algorithms here are fixed by the vendor's wire format, not
// chosen: the account endpoint expects an MD5 password digest and the SaaS
// API signs request headers with an MD5 over timestamp+nonce+token.
package cryptox

import (
	"crypto/md5" // #nosec G501 - mandated by the vendor protocol
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const nonceLength = 16

// PasswordDigest computes the one-way digest the account login endpoint
// expects in place of the plaintext password. The digest is computed once at
// input time; the plaintext is never retained.
func PasswordDigest(password string) string {
	sum := md5.Sum([]byte(password)) // #nosec G401 - mandated by the vendor protocol
	return hex.EncodeToString(sum[:])
}

// SignSaaSRequest computes the request signature header for SaaS API calls:
// md5(timestamp + nonce + token).
func SignSaaSRequest(timestamp, nonce, saasToken string) string {
	sum := md5.Sum([]byte(timestamp + nonce + saasToken)) // #nosec G401
	return hex.EncodeToString(sum[:])
}

// FingerprintToken returns a deterministic base64url SHA-256 fingerprint of a
// token value. Log lines reference tokens by fingerprint only, never by value.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Nonce returns a fresh random hex nonce for signed SaaS requests.
func Nonce() (string, error) {
	buf := make([]byte, nonceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
