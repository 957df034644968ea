package tclsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cloudcomfort/tclhome/pkg/idx"
	"github.com/cloudcomfort/tclhome/pkg/slogx"
)

const (
	defaultDispatchRate  = 5 // commands per second across all devices
	defaultDispatchBurst = 5
)

// DispatcherConfig tunes outbound command throughput. Zero fields take the
// defaults.
type DispatcherConfig struct {
	// RatePerSecond caps sustained command throughput to the broker.
	RatePerSecond float64
	// Burst allows short bursts above the sustained rate.
	Burst int
}

// Dispatcher sends signed commands to the message broker and interprets its
// acknowledgements. Dispatches to different devices run concurrently;
// dispatches to the same device are serialized, preserving last-writer-wins
// ordering of desired state.
type Dispatcher struct {
	client    *Client
	session   *Session
	refresher *Refresher
	signer    *Signer
	limiter   *rate.Limiter
	log       *slog.Logger

	mu        sync.Mutex
	perDevice map[string]*sync.Mutex
}

// NewDispatcher builds a Dispatcher over the given session.
func NewDispatcher(client *Client, session *Session, refresher *Refresher, cfg DispatcherConfig) *Dispatcher {
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = defaultDispatchRate
	}
	if cfg.Burst == 0 {
		cfg.Burst = defaultDispatchBurst
	}

	return &Dispatcher{
		client:    client,
		session:   session,
		refresher: refresher,
		signer:    NewSigner(client.cfg.Region),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		log:       client.log,
		perDevice: make(map[string]*sync.Mutex),
	}
}

// SendCommand encodes the desired state through the device's capability
// shortcuts, signs it against the current temporary access key, and publishes
// it to the device's shadow topic.
//
// Broker rejections come back as an unaccepted CommandResult with a tagged
// kind and a nil error; the error return is reserved for transport and
// session failures. An Unauthorized rejection triggers exactly one forced
// credential refresh and one retried dispatch.
func (d *Dispatcher) SendCommand(ctx context.Context, device Device, desired DesiredState) (CommandResult, error) {
	// Downstream log lines pull the device-tagged logger back out of the
	// context.
	ctx = slogx.WithDevice(slogx.WithContext(ctx, d.log), device.ID)
	log := slogx.FromContext(ctx)

	fields, err := device.EncodeDesired(desired)
	if err != nil {
		log.Warn("rejecting unencodable command", "error", err)
		return CommandResult{ErrorKind: CommandErrorMalformedPayload}, nil
	}

	// Serialize against other commands for the same device.
	lock := d.deviceLock(device.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := d.limiter.Wait(ctx); err != nil {
		return CommandResult{}, err
	}

	cmd := CommandRequest{
		DeviceID:  device.ID,
		Desired:   fields,
		Nonce:     idx.New(),
		Timestamp: time.Now(),
	}

	result, err := d.dispatchOnce(ctx, cmd)
	if err != nil {
		return CommandResult{}, err
	}
	if result.Accepted || result.ErrorKind != CommandErrorUnauthorized {
		return result, nil
	}

	// Unauthorized: force one refresh and retry once, then surface whatever
	// comes back.
	log.Info("dispatch unauthorized, forcing refresh")
	if err := d.client.RefreshSession(ctx, d.session); err != nil {
		return result, nil
	}

	result, err = d.dispatchOnce(ctx, cmd)
	if err != nil {
		return CommandResult{}, err
	}
	return result, nil
}

// dispatchOnce performs a single signed publish, retrying only transient
// network failures.
func (d *Dispatcher) dispatchOnce(ctx context.Context, cmd CommandRequest) (CommandResult, error) {
	log := slogx.FromContext(ctx)

	if err := d.refresher.Ensure(ctx, TokenAccessKey); err != nil {
		return CommandResult{}, err
	}
	key, ok := d.session.Token(TokenAccessKey)
	if !ok {
		return CommandResult{}, ErrSessionUnavailable
	}

	payload, err := json.Marshal(map[string]any{
		"state":       map[string]any{"desired": cmd.Desired},
		"clientToken": cmd.Nonce.String(),
	})
	if err != nil {
		return CommandResult{}, fmt.Errorf("failed to encode command payload: %w", err)
	}

	url := fmt.Sprintf("%s/topics/%%24aws/things/%s/shadow/update?qos=0", d.client.cfg.IoTEndpoint, cmd.DeviceID)

	var result CommandResult
	err = d.client.retryTransient(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create dispatch request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", awsUserAgent)

		if err := d.signer.Sign(ctx, req, payload, key, time.Now()); err != nil {
			return err
		}

		resp, err := d.client.http.Do(req)
		if err != nil {
			return classifyTransportError("dispatch", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 500 {
			return &NetworkError{
				Op:  "dispatch",
				Err: fmt.Errorf("broker returned HTTP %d", resp.StatusCode),
			}
		}

		kind, rejected := classifyBrokerStatus(resp.StatusCode)
		if rejected {
			log.Warn("command rejected", "kind", string(kind), "status", resp.StatusCode)
			result = CommandResult{ErrorKind: kind}
			return nil
		}

		result = CommandResult{Accepted: true}
		return nil
	})
	if err != nil {
		return CommandResult{}, err
	}

	if result.Accepted {
		log.Info("command accepted", "nonce", cmd.Nonce.String())
	}
	return result, nil
}

// deviceLock returns the serialization lock for a device, creating it on
// first use.
func (d *Dispatcher) deviceLock(deviceID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	lock, ok := d.perDevice[deviceID]
	if !ok {
		lock = &sync.Mutex{}
		d.perDevice[deviceID] = lock
	}
	return lock
}
