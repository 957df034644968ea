package tclsdk

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudcomfort/tclhome/pkg/jwtx"
)

// exchangeTokensResponse is the wire shape of the refresh_tokens endpoint.
type exchangeTokensResponse struct {
	vendorEnvelope
	Data struct {
		SaasToken    string `json:"saasToken"`
		CognitoToken string `json:"cognitoToken"`
	} `json:"data"`
}

// exchangeTokens performs step two: a still-valid SSO token in, the SaaS
// token and the Cognito identity-pool login token out. The Cognito token is
// a JWT; its exp claim is validated here so an already-expired token can
// never enter the credential store.
func (c *Client) exchangeTokens(
	ctx context.Context,
	userID, ssoToken string,
) (saas, cognito Token, err error) {
	url := c.cfg.CloudBaseURL + "/v3/auth/refresh_tokens"

	payload := map[string]any{
		"userId":   userID,
		"ssoToken": ssoToken,
		"appId":    c.cfg.AppID,
	}

	resp, body, err := c.postJSON(ctx, "token_exchange", url, nil, payload)
	if err != nil {
		return Token{}, Token{}, err
	}

	if authStatus(resp.StatusCode) {
		return Token{}, Token{}, ErrTokenExchangeFailed
	}

	var decoded exchangeTokensResponse
	if err := decodeJSON("token_exchange", body, &decoded); err != nil {
		return Token{}, Token{}, err
	}

	if decoded.rejected() {
		return Token{}, Token{}, newAuthError(
			ErrorCodeTokenExchangeFailed,
			fmt.Sprintf("token exchange rejected (errorcode %s)", decoded.ErrorCode),
		)
	}

	if decoded.Data.SaasToken == "" || decoded.Data.CognitoToken == "" {
		return Token{}, Token{}, fmt.Errorf("token_exchange: %w", errMissingResponseField)
	}

	now := time.Now()

	cognitoExpiry, err := jwtx.Expiry(decoded.Data.CognitoToken)
	if err != nil {
		return Token{}, Token{}, newAuthError(
			ErrorCodeTokenExchangeFailed,
			"cognito token is not a parseable JWT",
		)
	}
	if !cognitoExpiry.After(now) {
		return Token{}, Token{}, newAuthError(
			ErrorCodeTokenExchangeFailed,
			"cognito token arrived already expired",
		)
	}

	// The SaaS token is usually a JWT as well; fall back to a fixed window
	// when it is opaque.
	saasExpiry, err := jwtx.Expiry(decoded.Data.SaasToken)
	if err != nil {
		saasExpiry = now.Add(defaultSaaSTTL)
	}

	saas = Token{
		Kind:      TokenSaaS,
		Value:     decoded.Data.SaasToken,
		IssuedAt:  now,
		ExpiresAt: saasExpiry,
	}
	cognito = Token{
		Kind:      TokenCognito,
		Value:     decoded.Data.CognitoToken,
		IssuedAt:  now,
		ExpiresAt: cognitoExpiry,
	}

	c.log.Info("token exchange succeeded", "saas", saas, "cognito", cognito)
	return saas, cognito, nil
}

// identityCredentialsResponse is the wire shape of the Cognito
// GetCredentialsForIdentity call.
type identityCredentialsResponse struct {
	IdentityID  string `json:"IdentityId"`
	Credentials struct {
		AccessKeyID  string  `json:"AccessKeyId"`
		SecretKey    string  `json:"SecretKey"`
		SessionToken string  `json:"SessionToken"`
		Expiration   float64 `json:"Expiration"` // epoch seconds
	} `json:"Credentials"`
}

// identityCredentials performs step three: the Cognito token in, the
// temporary AWS access key triple out.
func (c *Client) identityCredentials(ctx context.Context, cognitoToken string) (Token, error) {
	headers := map[string]string{
		"X-Amz-Target": cognitoTarget,
		"Content-Type": "application/x-amz-json-1.1",
		"User-Agent":   awsUserAgent,
		"X-Amz-Date":   time.Now().UTC().Format("20060102T150405Z"),
	}
	payload := map[string]any{
		"IdentityId": c.cfg.IdentityID,
		"Logins": map[string]string{
			"cognito-identity.amazonaws.com": cognitoToken,
		},
	}

	resp, body, err := c.postJSON(ctx, "identity_credentials", c.cfg.CognitoEndpoint+"/", headers, payload)
	if err != nil {
		return Token{}, err
	}

	// Cognito reports failures through HTTP status alone, no errorcode
	// envelope.
	if resp.StatusCode >= 400 {
		return Token{}, newAuthError(
			ErrorCodeIdentityPoolRejected,
			fmt.Sprintf("identity pool returned HTTP %d", resp.StatusCode),
		)
	}

	var decoded identityCredentialsResponse
	if err := decodeJSON("identity_credentials", body, &decoded); err != nil {
		return Token{}, err
	}

	creds := decoded.Credentials
	if creds.AccessKeyID == "" || creds.SecretKey == "" || creds.SessionToken == "" {
		return Token{}, newAuthError(
			ErrorCodeIdentityPoolRejected,
			"identity pool response missing credential fields",
		)
	}

	now := time.Now()
	key := Token{
		Kind:         TokenAccessKey,
		Value:        creds.AccessKeyID,
		Secret:       creds.SecretKey,
		SessionToken: creds.SessionToken,
		IssuedAt:     now,
		ExpiresAt:    time.Unix(int64(creds.Expiration), 0),
	}

	c.log.Info("temporary credentials issued", "access_key", key)
	return key, nil
}
