package tclsdk

import (
	"context"
	"time"

	"github.com/cloudcomfort/tclhome/pkg/cryptox"
)

// Authenticate runs the full login pipeline for an account and returns an
// authenticated Session. On any step failure the tagged AuthError comes back
// and no session is returned; the credential store is never left half
// populated.
func (c *Client) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	// The digest is computed once at input time; the plaintext is gone from
	// here on.
	s := newSession(email, cryptox.PasswordDigest(password))

	tokens, userID, country, err := c.runLoginChain(ctx, email, s.passwordDigest)
	if err != nil {
		s.mu.Lock()
		s.state = StateFailed
		s.mu.Unlock()
		c.log.Warn("login pipeline failed", "error", err)
		return nil, err
	}

	s.setIdentity(userID, country)
	s.store.Replace(tokens...)

	s.mu.Lock()
	s.state = StateAuthenticated
	s.mu.Unlock()

	c.log.Info("session authenticated", "country", country)
	return s, nil
}

// RefreshSession refreshes the session's credentials, joining an already
// in-flight refresh when one exists instead of starting a second chain.
// A caller whose context ends while waiting detaches without cancelling the
// refresh for everyone else.
func (c *Client) RefreshSession(ctx context.Context, s *Session) error {
	p, owner := s.beginRefresh()
	if !owner {
		return p.wait(ctx)
	}

	err := c.runRefresh(ctx, s)
	s.finishRefresh(p, err)

	if err != nil {
		c.log.Warn("refresh failed", "error", err, "state", string(s.State()))
	}
	return err
}

// runLoginChain executes the three federation steps in strict order. Each
// step's output feeds the next; a failure anywhere aborts the whole chain.
// Transient network failures are retried with bounded backoff, rejections
// are not.
func (c *Client) runLoginChain(
	ctx context.Context,
	email, passwordDigest string,
) (tokens []Token, userID, country string, err error) {
	// 1. Account login: email + digest -> SSO token.
	var sso Token
	err = c.retryTransient(ctx, func() error {
		sso, userID, country, err = c.accountLogin(ctx, email, passwordDigest)
		return err
	})
	if err != nil {
		return nil, "", "", err
	}

	// 2-3. Exchange SSO for the rest of the chain.
	rest, err := c.runExchangeChain(ctx, userID, sso.Value)
	if err != nil {
		return nil, "", "", err
	}

	return append([]Token{sso}, rest...), userID, country, nil
}

// runExchangeChain executes steps two and three: SSO -> SaaS + Cognito ->
// temporary access key.
func (c *Client) runExchangeChain(ctx context.Context, userID, ssoToken string) ([]Token, error) {
	// 2. Token exchange: SSO -> SaaS + Cognito.
	var saas, cognito Token
	err := c.retryTransient(ctx, func() error {
		var err error
		saas, cognito, err = c.exchangeTokens(ctx, userID, ssoToken)
		return err
	})
	if err != nil {
		return nil, err
	}

	// 3. Identity pool: Cognito -> temporary AWS credentials.
	var key Token
	err = c.retryTransient(ctx, func() error {
		var err error
		key, err = c.identityCredentials(ctx, cognito.Value)
		return err
	})
	if err != nil {
		return nil, err
	}

	return []Token{saas, cognito, key}, nil
}

// runRefresh re-runs the exchange steps off the retained SSO token when it is
// still valid, and falls back to a full login otherwise. Tokens are collected
// locally and installed in one atomic Replace, so a cancelled or failed
// refresh writes nothing.
func (c *Client) runRefresh(ctx context.Context, s *Session) error {
	now := time.Now()
	userID, digest := s.identity()

	if sso, ok := s.store.Get(TokenSSO); ok && !sso.Expired(now) && userID != "" {
		tokens, err := c.runExchangeChain(ctx, userID, sso.Value)
		if err != nil {
			return err
		}
		s.store.Replace(tokens...)
		c.log.Info("session refreshed", "path", "exchange")
		return nil
	}

	// SSO expired: full login, which needs the retained digest.
	if digest == "" {
		return ErrReauthenticationRequired
	}

	tokens, userID, country, err := c.runLoginChain(ctx, s.email, digest)
	if err != nil {
		return err
	}

	s.setIdentity(userID, country)
	s.store.Replace(tokens...)
	c.log.Info("session refreshed", "path", "full_login")
	return nil
}
