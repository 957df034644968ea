package tclsdk

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultRefreshInterval = time.Minute
	defaultRefreshMargin   = 5 * time.Minute
	defaultEnsureTimeout   = 10 * time.Second
)

// RefresherConfig tunes the background refresh loop. Zero fields take the
// defaults: check every minute, refresh anything expiring within five
// minutes, and give blocked callers ten seconds to obtain a usable session.
type RefresherConfig struct {
	Interval      time.Duration
	Margin        time.Duration
	EnsureTimeout time.Duration
}

// Refresher proactively refreshes a session's credentials before they expire.
// It checks on a fixed interval and triggers the pipeline's refresh path
// whenever any token is inside the safety margin. Concurrent triggers, whether
// from the loop, an Ensure caller or a forced refresh, all collapse into the
// session's single in-flight refresh.
type Refresher struct {
	client  *Client
	session *Session
	cfg     RefresherConfig
	log     *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRefresher builds a Refresher for the given session.
func NewRefresher(client *Client, session *Session, cfg RefresherConfig) *Refresher {
	if cfg.Interval == 0 {
		cfg.Interval = defaultRefreshInterval
	}
	if cfg.Margin == 0 {
		cfg.Margin = defaultRefreshMargin
	}
	if cfg.EnsureTimeout == 0 {
		cfg.EnsureTimeout = defaultEnsureTimeout
	}

	return &Refresher{
		client:  client,
		session: session,
		cfg:     cfg,
		log:     client.log,
		stop:    make(chan struct{}),
	}
}

// Run executes the refresh loop until the context ends or Stop is called.
// The margin check runs once immediately, so a token already close to expiry
// is refreshed without waiting out the first interval.
func (r *Refresher) Run(ctx context.Context) {
	r.check(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.check(ctx)
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		}
	}
}

// Stop terminates a running loop. Safe to call more than once.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Refresher) check(ctx context.Context) {
	if r.session.State() == StateFailed {
		// Terminal; a failed session needs a fresh Authenticate, not a
		// background retry storm.
		return
	}

	if !r.session.Store().ExpiringWithin(r.cfg.Margin) {
		return
	}

	r.log.Debug("credentials inside safety margin, refreshing")
	if err := r.Trigger(ctx); err != nil {
		r.log.Warn("background refresh failed", "error", err)
	}
}

// Trigger requests a refresh now, joining the in-flight one if present.
func (r *Refresher) Trigger(ctx context.Context) error {
	return r.client.RefreshSession(ctx, r.session)
}

// Ensure blocks until the session holds an unexpired token of the given kind,
// refreshing if needed, bounded by the configured wait window. This is what
// the directory and dispatcher call before presenting a token anywhere.
func (r *Refresher) Ensure(ctx context.Context, kind TokenKind) error {
	if r.session.Usable(kind, time.Now()) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.EnsureTimeout)
	defer cancel()

	if err := r.Trigger(ctx); err != nil {
		return err
	}

	if !r.session.Usable(kind, time.Now()) {
		return ErrSessionUnavailable
	}
	return nil
}
