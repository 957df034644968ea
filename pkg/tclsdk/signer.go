package tclsdk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

// signingService is the AWS service name the broker's credential scope uses.
const signingService = "iotdata"

// ErrSigningKeyExpired reports an attempt to sign with an expired access key.
// The dispatcher refreshes before signing, so hitting this means the refresh
// path was bypassed.
var ErrSigningKeyExpired = errors.New("temporary access key has expired")

// Signer produces SigV4 signatures over outbound command requests using the
// session's temporary access key. The signature binds the payload, the
// endpoint and the signing time; it stays valid for a short window around
// that time regardless of the key's own expiry.
type Signer struct {
	signer *v4.Signer
	region string
}

// NewSigner builds a Signer for the given AWS region.
func NewSigner(region string) *Signer {
	return &Signer{
		signer: v4.NewSigner(),
		region: region,
	}
}

// Sign computes the SigV4 signature for req with payload as its body and
// attaches the resulting headers. The key must be an unexpired
// TokenAccessKey; an expired one is refused outright rather than producing a
// signature the broker will bounce.
func (s *Signer) Sign(ctx context.Context, req *http.Request, payload []byte, key Token, at time.Time) error {
	if key.Kind != TokenAccessKey {
		return fmt.Errorf("cannot sign with a %s token", key.Kind)
	}
	if key.Expired(at) {
		return ErrSigningKeyExpired
	}

	creds := aws.Credentials{
		AccessKeyID:     key.Value,
		SecretAccessKey: key.Secret,
		SessionToken:    key.SessionToken,
		CanExpire:       true,
		Expires:         key.ExpiresAt,
	}

	sum := sha256.Sum256(payload)
	return s.signer.SignHTTP(ctx, creds, req, hex.EncodeToString(sum[:]), signingService, s.region, at)
}
