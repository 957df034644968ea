package tclsdk

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cloudcomfort/tclhome/pkg/slogx"
)

// Production endpoints and app identity constants, as used by the vendor's
// Android app. All of them can be overridden through Config.
const (
	DefaultAccountBaseURL  = "https://pa.account.tcl.com"
	DefaultCloudBaseURL    = "https://prod-eu.aws.tcljd.com"
	DefaultCognitoEndpoint = "https://cognito-identity.eu-central-1.amazonaws.com"
	DefaultIoTEndpoint     = "https://a2qjkbbsk6qn2u-ats.iot.eu-central-1.amazonaws.com"
	DefaultRegion          = "eu-central-1"

	DefaultClientID   = "54148614"
	DefaultAppID      = "wx6e1af3fa84fbe523"
	DefaultIdentityID = "eu-central-1:61e8f839-2d72-c035-a2bf-7ef50a856ddd"
)

// App-platform header values the account endpoints expect. The misspelled
// th_appbulid header is what the real endpoint checks.
const (
	thPlatform    = "android"
	thVersion     = "4.8.1"
	thAppBuild    = "830"
	appVersion    = "5.4.1"
	userAgent     = "Android"
	contentType   = "application/json; charset=UTF-8"
	awsUserAgent  = "aws-sdk-iOS/2.26.2 iOS/18.4.1 en_RO"
	cognitoTarget = "AWSCognitoIdentityService.GetCredentialsForIdentity"
)

const (
	defaultCallTimeout      = 15 * time.Second
	defaultRetryMaxAttempts = 3
	defaultRetryInterval    = time.Second

	// The login response carries no expiry for the SSO token; the app treats
	// it as valid for roughly a day, so a conservative window is assumed.
	// TODO: sniff the real SSO lifetime from a 401 on the exchange endpoint.
	defaultSSOTTL = 12 * time.Hour

	// Fallback when the SaaS token is opaque rather than a JWT with exp.
	defaultSaaSTTL = time.Hour
)

// Config carries the endpoints, app identity and tuning knobs for a Client.
// The zero value is usable: every field falls back to the production default.
type Config struct {
	AccountBaseURL  string
	CloudBaseURL    string
	CognitoEndpoint string
	IoTEndpoint     string
	Region          string

	ClientID   string
	AppID      string
	IdentityID string

	// HTTPClient is used for every network call. The default client carries
	// the mandatory per-call timeout.
	HTTPClient *http.Client

	// RetryMaxAttempts bounds the retry loop for transient network failures;
	// RetryInitialInterval seeds the exponential backoff.
	RetryMaxAttempts     uint64
	RetryInitialInterval time.Duration

	Logger *slog.Logger
}

// Client performs the individual wire calls against the vendor cloud. It is
// stateless: tokens live in the Session's credential store, never here.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// NewClient builds a Client, filling every unset Config field with its
// production default.
func NewClient(cfg Config) *Client {
	if cfg.AccountBaseURL == "" {
		cfg.AccountBaseURL = DefaultAccountBaseURL
	}
	if cfg.CloudBaseURL == "" {
		cfg.CloudBaseURL = DefaultCloudBaseURL
	}
	if cfg.CognitoEndpoint == "" {
		cfg.CognitoEndpoint = DefaultCognitoEndpoint
	}
	if cfg.IoTEndpoint == "" {
		cfg.IoTEndpoint = DefaultIoTEndpoint
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.AppID == "" {
		cfg.AppID = DefaultAppID
	}
	if cfg.IdentityID == "" {
		cfg.IdentityID = DefaultIdentityID
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultCallTimeout}
	}
	if cfg.RetryMaxAttempts == 0 {
		cfg.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if cfg.RetryInitialInterval == 0 {
		cfg.RetryInitialInterval = defaultRetryInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slogx.Discard()
	}

	cfg.AccountBaseURL = strings.TrimSuffix(cfg.AccountBaseURL, "/")
	cfg.CloudBaseURL = strings.TrimSuffix(cfg.CloudBaseURL, "/")
	cfg.CognitoEndpoint = strings.TrimSuffix(cfg.CognitoEndpoint, "/")
	cfg.IoTEndpoint = strings.TrimSuffix(cfg.IoTEndpoint, "/")

	return &Client{
		cfg:  cfg,
		http: cfg.HTTPClient,
		log:  cfg.Logger,
	}
}
