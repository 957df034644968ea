package tclsdk

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// fakeCloud stands in for the vendor account endpoint, the SaaS cloud, the
// identity pool and the message broker, all behind two httptest servers. Each
// handler counts its calls and can be programmed to fail in specific ways.
type fakeCloud struct {
	t *testing.T

	mu sync.Mutex

	loginCalls    int
	exchangeCalls int
	identityCalls int
	thingsCalls   int
	brokerCalls   int

	loginStatus       int           // non-zero forces this HTTP status on login
	loginErrorCode    string        // non-empty forces an envelope rejection on login
	login500s         int           // initial 500 responses before succeeding
	exchange500s      int           // same, for the exchange endpoint
	exchangeAlways500 bool          // every exchange call returns 500
	exchangeDelay     time.Duration // sleep before answering an exchange call
	cognitoTTL        time.Duration // non-zero overrides the minted cognito token TTL
	identityStatus    int           // non-zero forces this HTTP status on the identity pool
	thingsStatuses    []int         // consumed one per call; empty means 200
	thingsRecords     []map[string]any
	brokerStatuses    []int // consumed one per call; empty means 200
	brokerDelay       time.Duration

	brokerActive        int
	brokerMaxConcurrent int
	lastAuthorization   string
	lastSecurityToken   string
	lastBrokerBody      []byte

	api    *httptest.Server
	broker *httptest.Server
}

func newFakeCloud(t *testing.T) *fakeCloud {
	f := &fakeCloud{t: t}

	f.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/account/login":
			f.handleLogin(w)
		case "/v3/auth/refresh_tokens":
			f.handleExchange(w)
		case "/v3/user/get_things":
			f.handleThings(w)
		case "/":
			f.handleIdentity(w)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	f.broker = httptest.NewServer(http.HandlerFunc(f.handleBroker))

	t.Cleanup(f.api.Close)
	t.Cleanup(f.broker.Close)
	return f
}

// client builds a Client pointed at the fake, with retry intervals tight
// enough to keep tests fast.
func (f *fakeCloud) client() *Client {
	return NewClient(Config{
		AccountBaseURL:       f.api.URL,
		CloudBaseURL:         f.api.URL,
		CognitoEndpoint:      f.api.URL,
		IoTEndpoint:          f.broker.URL,
		RetryMaxAttempts:     3,
		RetryInitialInterval: time.Millisecond,
	})
}

func (f *fakeCloud) counts() (login, exchange, identity, things, broker int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.exchangeCalls, f.identityCalls, f.thingsCalls, f.brokerCalls
}

func (f *fakeCloud) handleLogin(w http.ResponseWriter) {
	f.mu.Lock()
	f.loginCalls++
	n := f.loginCalls
	if f.login500s > 0 {
		f.login500s--
		f.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	status := f.loginStatus
	errorCode := f.loginErrorCode
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if errorCode != "" {
		writeJSON(w, map[string]any{"errorcode": errorCode, "msg": "rejected"})
		return
	}

	writeJSON(w, map[string]any{
		"errorcode": "0",
		"token":     fmt.Sprintf("sso-token-%d", n),
		"user": map[string]any{
			"username":    "user-1",
			"countryAbbr": "DE",
		},
	})
}

func (f *fakeCloud) handleExchange(w http.ResponseWriter) {
	f.mu.Lock()
	f.exchangeCalls++
	if f.exchangeAlways500 {
		f.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if f.exchange500s > 0 {
		f.exchange500s--
		f.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	delay := f.exchangeDelay
	cognitoTTL := f.cognitoTTL
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if cognitoTTL == 0 {
		cognitoTTL = time.Hour
	}

	writeJSON(w, map[string]any{
		"errorcode": "0",
		"data": map[string]any{
			"saasToken":    mintJWT(f.t, time.Hour),
			"cognitoToken": mintJWT(f.t, cognitoTTL),
		},
	})
}

func (f *fakeCloud) handleIdentity(w http.ResponseWriter) {
	f.mu.Lock()
	f.identityCalls++
	status := f.identityStatus
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	writeJSON(w, map[string]any{
		"IdentityId": "eu-central-1:test-identity",
		"Credentials": map[string]any{
			"AccessKeyId":  "ASIATESTKEY",
			"SecretKey":    "test-secret",
			"SessionToken": "test-session-token",
			"Expiration":   float64(time.Now().Add(time.Hour).Unix()),
		},
	})
}

func (f *fakeCloud) handleThings(w http.ResponseWriter) {
	f.mu.Lock()
	f.thingsCalls++
	var status int
	if len(f.thingsStatuses) > 0 {
		status = f.thingsStatuses[0]
		f.thingsStatuses = f.thingsStatuses[1:]
	}
	records := f.thingsRecords
	f.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	if records == nil {
		records = []map[string]any{
			{
				"deviceId":        "dev-1",
				"nickName":        "Living Room AC",
				"deviceType":      "Split AC",
				"firmwareVersion": "3.2.1",
				"isOnline":        1,
			},
		}
	}
	writeJSON(w, map[string]any{"errorcode": "0", "data": records})
}

func (f *fakeCloud) handleBroker(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.brokerCalls++
	f.brokerActive++
	if f.brokerActive > f.brokerMaxConcurrent {
		f.brokerMaxConcurrent = f.brokerActive
	}
	var status int
	if len(f.brokerStatuses) > 0 {
		status = f.brokerStatuses[0]
		f.brokerStatuses = f.brokerStatuses[1:]
	}
	f.lastAuthorization = r.Header.Get("Authorization")
	f.lastSecurityToken = r.Header.Get("X-Amz-Security-Token")
	f.lastBrokerBody = body
	delay := f.brokerDelay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.brokerActive--
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// jwtSerial keeps minted tokens distinct even when two mints share the same
// wall-clock second.
var jwtSerial atomic.Int64

// mintJWT produces a signed JWT whose exp claim lies ttl in the future.
func mintJWT(t *testing.T, ttl time.Duration) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
		"jti": fmt.Sprintf("%d", jwtSerial.Add(1)),
	})
	signed, err := token.SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

func testDevice(id string) Device {
	return Device{
		ID:          id,
		DisplayName: "Test AC",
		Type:        "Split AC",
		Online:      true,
		TopicRef:    fmt.Sprintf("$aws/things/%s/shadow/update", id),
		Shortcuts:   defaultShortcuts(),
	}
}
