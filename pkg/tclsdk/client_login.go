package tclsdk

import (
	"context"
	"fmt"
	"time"
)

// accountLoginResponse is the wire shape of the account login endpoint.
type accountLoginResponse struct {
	vendorEnvelope
	Token string `json:"token"`
	User  struct {
		Username    string `json:"username"`
		CountryAbbr string `json:"countryAbbr"`
	} `json:"user"`
}

// accountLogin performs step one of the federation chain: email + password
// digest in, SSO token plus the account's user id and country code out.
// The plaintext password never reaches this function.
func (c *Client) accountLogin(
	ctx context.Context,
	email, passwordDigest string,
) (sso Token, userID, country string, err error) {
	url := fmt.Sprintf("%s/account/login?clientId=%s", c.cfg.AccountBaseURL, c.cfg.ClientID)

	headers := map[string]string{
		"th_platform": thPlatform,
		"th_version":  thVersion,
		"th_appbulid": thAppBuild,
	}
	payload := map[string]any{
		"equipment":     2,
		"password":      passwordDigest,
		"osType":        1,
		"username":      email,
		"clientVersion": thVersion,
		"osVersion":     "6.0",
		"deviceModel":   "Android SDK built for x86",
		"captchaRule":   2,
		"channel":       "app",
	}

	resp, body, err := c.postJSON(ctx, "account_login", url, headers, payload)
	if err != nil {
		return Token{}, "", "", err
	}

	if authStatus(resp.StatusCode) {
		return Token{}, "", "", ErrInvalidCredentials
	}

	var decoded accountLoginResponse
	if err := decodeJSON("account_login", body, &decoded); err != nil {
		return Token{}, "", "", err
	}

	if decoded.rejected() {
		return Token{}, "", "", newAuthError(
			ErrorCodeInvalidCredentials,
			fmt.Sprintf("account login rejected (errorcode %s)", decoded.ErrorCode),
		)
	}

	if decoded.Token == "" || decoded.User.Username == "" || decoded.User.CountryAbbr == "" {
		return Token{}, "", "", fmt.Errorf("account_login: %w", errMissingResponseField)
	}

	now := time.Now()
	sso = Token{
		Kind:      TokenSSO,
		Value:     decoded.Token,
		IssuedAt:  now,
		ExpiresAt: now.Add(defaultSSOTTL),
	}

	c.log.Info("account login succeeded", "token", sso)
	return sso, decoded.User.Username, decoded.User.CountryAbbr, nil
}
