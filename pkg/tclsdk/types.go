package tclsdk

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudcomfort/tclhome/pkg/cryptox"
	"github.com/cloudcomfort/tclhome/pkg/idx"
)

// TokenKind tags the credential types produced along the federation chain.
type TokenKind string

const (
	// TokenSSO is issued by account login and only good for token exchange.
	TokenSSO TokenKind = "sso"

	// TokenSaaS authorises device-directory and further exchange calls.
	TokenSaaS TokenKind = "saas"

	// TokenCognito is the identity-pool login token (a vendor-issued JWT)
	// exchanged for temporary AWS credentials.
	TokenCognito TokenKind = "cognito"

	// TokenAccessKey is the temporary AWS credential triple used to sign
	// device commands. Value holds the access key id; Secret and
	// SessionToken hold the rest of the triple.
	TokenAccessKey TokenKind = "access_key"
)

// Token is a single credential with its validity window. A token whose
// ExpiresAt has passed must never be presented to an endpoint; callers refresh
// first.
type Token struct {
	Kind         TokenKind
	Value        string
	Secret       string // TokenAccessKey only
	SessionToken string // TokenAccessKey only
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Expired reports whether the token is unusable at the given instant.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// ExpiringWithin reports whether the token expires within d of now.
func (t Token) ExpiringWithin(now time.Time, d time.Duration) bool {
	return !t.ExpiresAt.After(now.Add(d))
}

// LogValue renders the token for structured logging: kind, fingerprint and
// expiry only. The value itself never reaches a log line.
func (t Token) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", string(t.Kind)),
		slog.String("fingerprint", cryptox.FingerprintToken(t.Value)),
		slog.Time("expires_at", t.ExpiresAt),
	)
}

// Capability names an abstract device control. Dispatch is capability-driven:
// a device advertises which controls it supports via its shortcut table, and
// commands are encoded through that table rather than per-type subclasses.
type Capability string

const (
	CapabilityPower             Capability = "power"
	CapabilityTargetTemperature Capability = "target_temperature"
	CapabilityFanSpeed          Capability = "fan_speed"
	CapabilityWorkMode          Capability = "work_mode"
)

// Device is an immutable snapshot of a registered device from the last
// successful directory fetch. Snapshots are replaced wholesale on refresh,
// never patched field by field.
type Device struct {
	ID              string
	DisplayName     string
	Type            string
	FirmwareVersion string
	Online          bool

	// TopicRef is the broker topic path commands for this device publish to.
	TopicRef string

	// Shortcuts maps abstract capabilities to the vendor field names used in
	// command payloads, e.g. CapabilityPower -> "powerSwitch".
	Shortcuts map[Capability]string

	// Properties is the raw property snapshot reported by the directory.
	Properties map[string]any
}

// DesiredState is an abstract desired device state keyed by capability.
type DesiredState map[Capability]any

// EncodeDesired translates an abstract desired state into the vendor payload
// fields using the device's shortcut table. A capability the device has no
// shortcut for is a malformed command, not something to silently drop.
func (d Device) EncodeDesired(state DesiredState) (map[string]any, error) {
	if len(state) == 0 {
		return nil, fmt.Errorf("empty desired state for device %s", d.ID)
	}

	fields := make(map[string]any, len(state))
	for capability, value := range state {
		shortcut, ok := d.Shortcuts[capability]
		if !ok {
			return nil, fmt.Errorf("device %s does not support capability %q", d.ID, capability)
		}
		fields[shortcut] = value
	}
	return fields, nil
}

// Supports reports whether the device advertises the given capability.
func (d Device) Supports(capability Capability) bool {
	_, ok := d.Shortcuts[capability]
	return ok
}

// CommandRequest is one outbound control command prior to signing.
type CommandRequest struct {
	DeviceID  string
	Desired   map[string]any // shortcut-encoded
	Nonce     idx.ID
	Timestamp time.Time
}

// CommandResult is the interpreted broker acknowledgement for a dispatch.
type CommandResult struct {
	Accepted  bool
	ErrorKind CommandErrorKind // empty when Accepted
}

// defaultShortcuts is the control mapping for the AC product line. The
// directory response doesn't describe controls, so the mapping is derived
// from the device type.
func defaultShortcuts() map[Capability]string {
	return map[Capability]string{
		CapabilityPower:             "powerSwitch",
		CapabilityTargetTemperature: "targetTemperature",
		CapabilityFanSpeed:          "windSpeed",
		CapabilityWorkMode:          "workMode",
	}
}
