package tclsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// postJSON performs a JSON POST and returns the response with its body read
// out. Transport failures come back as NetworkError; HTTP 5xx is treated the
// same way, since it says nothing about the request and everything about the
// endpoint's health.
func (c *Client) postJSON(
	ctx context.Context,
	op, url string,
	headers map[string]string,
	payload any,
) (*http.Response, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, classifyTransportError(op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, classifyTransportError(op, err)
	}

	if resp.StatusCode >= 500 {
		return nil, nil, &NetworkError{
			Op:  op,
			Err: fmt.Errorf("endpoint returned HTTP %d", resp.StatusCode),
		}
	}

	return resp, bodyBytes, nil
}

// decodeJSON unmarshals a response body, reporting the op on failure.
func decodeJSON(op string, body []byte, target any) error {
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return nil
}

// retryTransient runs op under the bounded exponential backoff policy.
// Only NetworkErrors are retried; everything else is permanent. The context
// bounds the whole loop, so caller cancellation stops it between attempts.
func (c *Client) retryTransient(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitialInterval

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.RetryMaxAttempts-1), ctx))
}

// vendorEnvelope is the common errorcode/msg wrapper on the vendor's own
// endpoints. errorcode "0" means success; anything else is a rejection.
type vendorEnvelope struct {
	ErrorCode string `json:"errorcode"`
	Msg       string `json:"msg"`
}

func (v vendorEnvelope) rejected() bool {
	return v.ErrorCode != "0"
}

// authStatus reports whether an HTTP status is an authentication rejection
// rather than a transport- or server-side problem.
func authStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

var errMissingResponseField = errors.New("response missing required field")
