package tencent

import "github.com/xiansir-zhe/cloud-tool/internal/core"

// APIVersion is the vendor API version sent with every call.
const APIVersion = "2017-03-12"

// Envelope is the JSON body the console gateway expects.
type Envelope struct {
	ServiceType string         `json:"serviceType"`
	Action      string         `json:"action"`
	Region      string         `json:"region,omitempty"`
	RegionID    int            `json:"regionId,omitempty"`
	Data        map[string]any `json:"data"`
}

// NewEnvelope builds the envelope for op. Data always carries the API version.
// Compute envelopes carry region; block-storage envelopes carry regionID instead.
func NewEnvelope(op core.Operation, region string, regionID int, data map[string]any) Envelope {
	payload := map[string]any{"Version": APIVersion}
	for k, v := range data {
		payload[k] = v
	}

	env := Envelope{
		ServiceType: string(op.Plane()),
		Action:      op.Action(),
		Data:        payload,
	}
	if op.Plane() == core.PlaneBlockStorage {
		env.RegionID = regionID
	} else {
		env.Region = region
	}
	return env
}

// Reply is a decoded vendor reply. The interesting part lives under data.Response.
type Reply map[string]any

// Response returns the data.Response object, if present.
func (r Reply) Response() (map[string]any, bool) {
	data, ok := r["data"].(map[string]any)
	if !ok {
		return nil, false
	}
	resp, ok := data["Response"].(map[string]any)
	return resp, ok
}

// Code returns the gateway-level code and message, which are set when the
// gateway itself rejects a call (for example an expired session).
func (r Reply) Code() (int, string) {
	code := 0
	switch v := r["code"].(type) {
	case float64:
		code = int(v)
	case string:
		if v != "" && v != "0" {
			code = -1
		}
	}
	msg, _ := r["message"].(string)
	if msg == "" {
		msg, _ = r["msg"].(string)
	}
	return code, msg
}
