package tclsdk

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, fake *fakeCloud) *Dispatcher {
	t.Helper()

	client := fake.client()
	session, err := client.Authenticate(context.Background(), "user@example.com", "hunter2")
	require.NoError(t, err)

	r := NewRefresher(client, session, RefresherConfig{})
	return NewDispatcher(client, session, r, DispatcherConfig{RatePerSecond: 1000, Burst: 1000})
}

func TestDispatcher_AcceptedCommand(t *testing.T) {
	t.Parallel()

	fake := newFakeCloud(t)
	d := newTestDispatcher(t, fake)

	result, err := d.SendCommand(context.Background(), testDevice("dev-1"), DesiredState{
		CapabilityPower: 1,
	})
	require.NoError(t, err)
	require.True(t, result.Accepted)
	require.Empty(t, result.ErrorKind)

	fake.mu.Lock()
	auth := fake.lastAuthorization
	securityToken := fake.lastSecurityToken
	body := fake.lastBrokerBody
	fake.mu.Unlock()

	require.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256"), "command must carry a SigV4 signature")
	require.Contains(t, auth, "ASIATESTKEY")
	require.Equal(t, "test-session-token", securityToken)

	var payload struct {
		State struct {
			Desired map[string]any `json:"desired"`
		} `json:"state"`
		ClientToken string `json:"clientToken"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.Equal(t, float64(1), payload.State.Desired["powerSwitch"])
	require.NotEmpty(t, payload.ClientToken)
}

func TestDispatcher_UnauthorizedRefreshesOnceAndRetries(t *testing.T) {
	t.Parallel()

	fake := newFakeCloud(t)
	d := newTestDispatcher(t, fake)
	_, exchangeBefore, _, _, _ := fake.counts()

	fake.mu.Lock()
	fake.brokerStatuses = []int{401}
	fake.mu.Unlock()

	result, err := d.SendCommand(context.Background(), testDevice("dev-1"), DesiredState{
		CapabilityPower: 0,
	})
	require.NoError(t, err)
	require.True(t, result.Accepted)

	_, exchangeAfter, _, _, broker := fake.counts()
	require.Equal(t, 1, exchangeAfter-exchangeBefore, "an unauthorized ack forces exactly one refresh")
	require.Equal(t, 2, broker, "and exactly one retried dispatch")
}

func TestDispatcher_SecondUnauthorizedIsFinal(t *testing.T) {
	t.Parallel()

	fake := newFakeCloud(t)
	d := newTestDispatcher(t, fake)

	fake.mu.Lock()
	fake.brokerStatuses = []int{401, 403}
	fake.mu.Unlock()

	result, err := d.SendCommand(context.Background(), testDevice("dev-1"), DesiredState{
		CapabilityPower: 1,
	})
	require.NoError(t, err, "broker rejections come back in the result, not the error")
	require.False(t, result.Accepted)
	require.Equal(t, CommandErrorUnauthorized, result.ErrorKind)

	_, _, _, _, broker := fake.counts()
	require.Equal(t, 2, broker, "no third dispatch after the retried one is rejected")
}

func TestDispatcher_BrokerRejectionKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		want   CommandErrorKind
	}{
		{"not found is device offline", 404, CommandErrorDeviceOffline},
		{"gone is device offline", 410, CommandErrorDeviceOffline},
		{"too many requests is throttled", 429, CommandErrorThrottled},
		{"bad request is malformed payload", 400, CommandErrorMalformedPayload},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fake := newFakeCloud(t)
			d := newTestDispatcher(t, fake)

			fake.mu.Lock()
			fake.brokerStatuses = []int{tc.status}
			fake.mu.Unlock()

			result, err := d.SendCommand(context.Background(), testDevice("dev-1"), DesiredState{
				CapabilityPower: 1,
			})
			require.NoError(t, err)
			require.False(t, result.Accepted)
			require.Equal(t, tc.want, result.ErrorKind)

			_, _, _, _, broker := fake.counts()
			require.Equal(t, 1, broker, "non-auth rejections must not be retried")
		})
	}
}

func TestDispatcher_TransientBrokerFailureRetried(t *testing.T) {
	t.Parallel()

	fake := newFakeCloud(t)
	d := newTestDispatcher(t, fake)

	fake.mu.Lock()
	fake.brokerStatuses = []int{500}
	fake.mu.Unlock()

	result, err := d.SendCommand(context.Background(), testDevice("dev-1"), DesiredState{
		CapabilityPower: 1,
	})
	require.NoError(t, err)
	require.True(t, result.Accepted)

	_, _, _, _, broker := fake.counts()
	require.Equal(t, 2, broker)
}

func TestDispatcher_UnsupportedCapabilityIsMalformed(t *testing.T) {
	t.Parallel()

	fake := newFakeCloud(t)
	d := newTestDispatcher(t, fake)

	device := testDevice("dev-1")
	device.Shortcuts = map[Capability]string{CapabilityPower: "powerSwitch"}

	result, err := d.SendCommand(context.Background(), device, DesiredState{
		CapabilityTargetTemperature: 24,
	})
	require.NoError(t, err)
	require.False(t, result.Accepted)
	require.Equal(t, CommandErrorMalformedPayload, result.ErrorKind)

	_, _, _, _, broker := fake.counts()
	require.Zero(t, broker, "an unencodable command must never reach the broker")
}

func TestDispatcher_SameDeviceCommandsSerialized(t *testing.T) {
	t.Parallel()

	fake := newFakeCloud(t)
	fake.brokerDelay = 20 * time.Millisecond
	d := newTestDispatcher(t, fake)

	device := testDevice("dev-1")

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := d.SendCommand(context.Background(), device, DesiredState{
				CapabilityPower: 1,
			})
			require.NoError(t, err)
			require.True(t, result.Accepted)
		}()
	}
	wg.Wait()

	fake.mu.Lock()
	maxConcurrent := fake.brokerMaxConcurrent
	fake.mu.Unlock()
	require.Equal(t, 1, maxConcurrent, "commands for one device must not overlap in flight")
}

func TestDispatcher_DifferentDevicesDispatchConcurrently(t *testing.T) {
	t.Parallel()

	fake := newFakeCloud(t)
	fake.brokerDelay = 50 * time.Millisecond
	d := newTestDispatcher(t, fake)

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, id := range []string{"dev-1", "dev-2"} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := d.SendCommand(context.Background(), testDevice(id), DesiredState{
				CapabilityPower: 1,
			})
			require.NoError(t, err)
			require.True(t, result.Accepted)
		}()
	}
	close(start)
	wg.Wait()

	fake.mu.Lock()
	maxConcurrent := fake.brokerMaxConcurrent
	fake.mu.Unlock()
	require.GreaterOrEqual(t, maxConcurrent, 2,
		"commands for different devices must overlap in flight")
}
