package tclsdk

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Directory fetches and caches the devices registered to a session. Each
// successful fetch replaces the cached snapshot wholesale; diffing against
// previously known devices is the caller's concern, not this component's.
type Directory struct {
	client    *Client
	session   *Session
	refresher *Refresher
	log       *slog.Logger

	mu      sync.RWMutex
	devices []Device
}

// NewDirectory builds a Directory over the given session.
func NewDirectory(client *Client, session *Session, refresher *Refresher) *Directory {
	return &Directory{
		client:    client,
		session:   session,
		refresher: refresher,
		log:       client.log,
	}
}

// ListDevices fetches the current device set from the cloud. It requires an
// authenticated session; when the session is failed or its tokens expired it
// asks the refresher for one first, bounded by the refresher's wait window,
// and fails with session_unavailable if none can be produced.
func (d *Directory) ListDevices(ctx context.Context) ([]Device, error) {
	if err := d.refresher.Ensure(ctx, TokenSaaS); err != nil {
		return nil, sessionUnavailable(err)
	}

	devices, err := d.fetch(ctx)
	if err == nil {
		d.replace(devices)
		return devices, nil
	}

	// A rejection of the SaaS token means the session went stale under us:
	// force one refresh and retry the fetch once.
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return nil, err
	}

	d.log.Info("directory fetch rejected, refreshing session once")
	if refreshErr := d.refresher.Trigger(ctx); refreshErr != nil {
		return nil, sessionUnavailable(refreshErr)
	}

	devices, err = d.fetch(ctx)
	if err != nil {
		if errors.As(err, &authErr) {
			return nil, sessionUnavailable(err)
		}
		return nil, err
	}

	d.replace(devices)
	return devices, nil
}

// Devices returns a copy of the last successful snapshot.
func (d *Directory) Devices() []Device {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Device, len(d.devices))
	copy(out, d.devices)
	return out
}

// Device looks a device up in the last snapshot by id.
func (d *Directory) Device(id string) (Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, dev := range d.devices {
		if dev.ID == id {
			return dev, true
		}
	}
	return Device{}, false
}

func (d *Directory) fetch(ctx context.Context) ([]Device, error) {
	saas, ok := d.session.Token(TokenSaaS)
	if !ok {
		return nil, ErrSessionUnavailable
	}

	var devices []Device
	err := d.client.retryTransient(ctx, func() error {
		var err error
		devices, err = d.client.getThings(ctx, saas.Value, d.session.Country())
		return err
	})
	return devices, err
}

// replace swaps in a new snapshot. Copy-on-refresh: readers holding the old
// slice are unaffected.
func (d *Directory) replace(devices []Device) {
	d.mu.Lock()
	d.devices = devices
	d.mu.Unlock()
}

func sessionUnavailable(cause error) error {
	var dirErr *DirectoryError
	if errors.As(cause, &dirErr) {
		return cause
	}
	return &DirectoryError{
		Code:        ErrorCodeSessionUnavailable,
		Description: cause.Error(),
	}
}
