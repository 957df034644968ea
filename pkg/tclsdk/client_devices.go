package tclsdk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudcomfort/tclhome/pkg/cryptox"
)

// thingRecord is one device entry in the get_things response.
type thingRecord struct {
	DeviceID        string         `json:"deviceId"`
	NickName        string         `json:"nickName"`
	DeviceType      string         `json:"deviceType"`
	FirmwareVersion string         `json:"firmwareVersion"`
	IsOnline        int            `json:"isOnline"`
	Properties      map[string]any `json:"properties"`
}

type getThingsResponse struct {
	vendorEnvelope
	Data []thingRecord `json:"data"`
}

// getThings fetches the account's registered devices. Every call is signed
// with a fresh timestamp/nonce pair over the SaaS token.
func (c *Client) getThings(ctx context.Context, saasToken, country string) ([]Device, error) {
	url := c.cfg.CloudBaseURL + "/v3/user/get_things"

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce, err := cryptox.Nonce()
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"platform":        thPlatform,
		"appversion":      appVersion,
		"thomeversion":    thVersion,
		"accesstoken":     saasToken,
		"countrycode":     country,
		"accept-language": "en",
		"timestamp":       timestamp,
		"nonce":           nonce,
		"sign":            cryptox.SignSaaSRequest(timestamp, nonce, saasToken),
	}

	resp, body, err := c.postJSON(ctx, "get_things", url, headers, map[string]any{})
	if err != nil {
		return nil, err
	}

	if authStatus(resp.StatusCode) {
		return nil, ErrStaleCredentials
	}

	var decoded getThingsResponse
	if err := decodeJSON("get_things", body, &decoded); err != nil {
		return nil, err
	}

	if decoded.rejected() {
		return nil, fmt.Errorf("get_things rejected (errorcode %s)", decoded.ErrorCode)
	}

	devices := make([]Device, 0, len(decoded.Data))
	for _, thing := range decoded.Data {
		if thing.DeviceID == "" {
			c.log.Warn("skipping device record with no id", "nick_name", thing.NickName)
			continue
		}

		name := thing.NickName
		if name == "" {
			name = fmt.Sprintf("TCL AC %s", thing.DeviceID)
		}

		devices = append(devices, Device{
			ID:              thing.DeviceID,
			DisplayName:     name,
			Type:            thing.DeviceType,
			FirmwareVersion: thing.FirmwareVersion,
			Online:          thing.IsOnline == 1,
			TopicRef:        fmt.Sprintf("$aws/things/%s/shadow/update", thing.DeviceID),
			Shortcuts:       defaultShortcuts(),
			Properties:      thing.Properties,
		})
	}

	c.log.Info("fetched devices", "count", len(devices))
	return devices, nil
}
