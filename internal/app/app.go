// Package app wires the SDK into a small one-shot adapter: authenticate,
// start the background refresher, list devices, and optionally flip one
// device's power state. Everything of substance lives in pkg/tclsdk; this is
// the collaborator side of that boundary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudcomfort/tclhome/pkg/slogx"
	"github.com/cloudcomfort/tclhome/pkg/tclsdk"
)

type App struct {
	cfg    Config
	log    *slog.Logger
	client *tclsdk.Client
}

func New(cfg Config) (*App, error) {
	if cfg.Email == "" || cfg.Password == "" {
		return nil, errors.New("TCLHOME_EMAIL and TCLHOME_PASSWORD are required")
	}

	logger := slogx.New(slogx.Config{
		Service: "tclhome",
		Version: "0.1.0",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	client := tclsdk.NewClient(tclsdk.Config{
		AccountBaseURL:  cfg.AccountBaseURL,
		CloudBaseURL:    cfg.CloudBaseURL,
		CognitoEndpoint: cfg.CognitoEndpoint,
		IoTEndpoint:     cfg.IoTEndpoint,
		Region:          cfg.Region,
		IdentityID:      cfg.IdentityID,
		Logger:          logger,
	})

	return &App{cfg: cfg, log: logger, client: client}, nil
}

func (a *App) Run(ctx context.Context) error {
	session, err := a.client.Authenticate(ctx, a.cfg.Email, a.cfg.Password)
	if err != nil {
		if errors.Is(err, tclsdk.ErrInvalidCredentials) {
			return fmt.Errorf("login rejected, check email and password: %w", err)
		}
		return fmt.Errorf("login failed: %w", err)
	}
	defer session.Close()

	refresher := tclsdk.NewRefresher(a.client, session, tclsdk.RefresherConfig{
		Interval: a.cfg.RefreshInterval,
		Margin:   a.cfg.RefreshMargin,
	})
	go refresher.Run(ctx)
	defer refresher.Stop()

	directory := tclsdk.NewDirectory(a.client, session, refresher)
	devices, err := directory.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("device listing failed: %w", err)
	}

	for _, device := range devices {
		a.log.Info("device",
			"id", device.ID,
			"name", device.DisplayName,
			"type", device.Type,
			"online", device.Online,
		)
	}

	if a.cfg.DeviceID == "" {
		return nil
	}

	device, ok := directory.Device(a.cfg.DeviceID)
	if !ok {
		return fmt.Errorf("device %s not found in directory", a.cfg.DeviceID)
	}

	power := 0
	if a.cfg.Power == "on" {
		power = 1
	}

	dispatcher := tclsdk.NewDispatcher(a.client, session, refresher, tclsdk.DispatcherConfig{})
	result, err := dispatcher.SendCommand(ctx, device, tclsdk.DesiredState{
		tclsdk.CapabilityPower: power,
	})
	if err != nil {
		return fmt.Errorf("dispatch failed: %w", err)
	}
	if !result.Accepted {
		return fmt.Errorf("command rejected: %s", result.ErrorKind)
	}

	a.log.Info("command accepted", "device_id", device.ID, "power", power)
	return nil
}
