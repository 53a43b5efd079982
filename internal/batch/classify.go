package batch

import (
	"errors"
	"fmt"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/tencent"
)

const (
	msgInvalidFormat = "invalid response format"
	msgUnknownError  = "unknown error"
)

// Outcome is the classification of one vendor reply.
type Outcome struct {
	Status       core.Status
	ErrorMessage string
	RequestID    string
	// CreatedID is the identifier the vendor assigned (ImageId, SnapshotId), when asked for.
	CreatedID string
}

// Classify maps a decoded reply onto an outcome. An Error key fails the item even when null.
// createdField names the Response field that carries a newly created identifier;
// pass "" when nothing is created.
func Classify(reply tencent.Reply, createdField string) Outcome {
	resp, ok := reply.Response()
	if !ok {
		return Outcome{Status: core.StatusFailure, ErrorMessage: msgInvalidFormat}
	}

	out := Outcome{RequestID: stringField(resp, "RequestId")}

	if rawErr, present := resp["Error"]; present {
		out.Status = core.StatusFailure
		out.ErrorMessage = msgUnknownError
		if e, ok := rawErr.(map[string]any); ok {
			if msg := stringField(e, "Message"); msg != "" {
				out.ErrorMessage = msg
			}
		}
		return out
	}

	// A non-zero gateway code overrides a response without Error.
	if code, msg := reply.Code(); code != 0 {
		out.Status = core.StatusFailure
		out.ErrorMessage = msg
		if msg == "" {
			out.ErrorMessage = msgUnknownError
		}
		return out
	}

	out.Status = core.StatusSuccess
	if createdField != "" {
		out.CreatedID = stringField(resp, createdField)
	}
	return out
}

// ClassifyError maps a call error onto an outcome. Undecodable bodies are parse errors,
// everything else (transport, cancellation) is a failure carrying the error text.
func ClassifyError(err error) Outcome {
	if errors.Is(err, tencent.ErrDecode) {
		return Outcome{Status: core.StatusParseError, ErrorMessage: err.Error()}
	}
	return Outcome{Status: core.StatusFailure, ErrorMessage: err.Error()}
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
