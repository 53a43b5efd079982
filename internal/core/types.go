// Package core defines the shared vocabulary of cvmbatch: the six batch operations, the
// outcome of each vendor call, and the bundles that flow between extractor, runner and reporter.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Operation names one of the six supported batch operations.
type Operation string

const (
	OpStopInstances  Operation = "stop"
	OpStartInstances Operation = "start"
	OpCreateImage    Operation = "create-image"
	OpDeleteImage    Operation = "delete-image"
	OpCreateSnapshot Operation = "create-snapshot"
	OpDeleteSnapshot Operation = "delete-snapshot"
)

// Operations lists every operation in menu order.
var Operations = []Operation{
	OpStopInstances,
	OpStartInstances,
	OpCreateImage,
	OpDeleteImage,
	OpCreateSnapshot,
	OpDeleteSnapshot,
}

// Plane is the vendor service family an operation is addressed to.
type Plane string

const (
	PlaneCompute      Plane = "cvm"
	PlaneBlockStorage Plane = "cbs"
)

// ParseOperation resolves a user-supplied operation name.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Operations {
		if op == known {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Action is the vendor API action name.
func (o Operation) Action() string {
	switch o {
	case OpStopInstances:
		return "StopInstances"
	case OpStartInstances:
		return "StartInstances"
	case OpCreateImage:
		return "CreateImage"
	case OpDeleteImage:
		return "DeleteImages"
	case OpCreateSnapshot:
		return "CreateSnapshot"
	case OpDeleteSnapshot:
		return "DeleteSnapshots"
	}
	return ""
}

// Plane reports which service family handles the operation.
func (o Operation) Plane() Plane {
	switch o {
	case OpCreateSnapshot, OpDeleteSnapshot:
		return PlaneBlockStorage
	}
	return PlaneCompute
}

// Destructive operations must pass the access gate.
func (o Operation) Destructive() bool {
	return o == OpDeleteImage || o == OpDeleteSnapshot
}

// Status is the outcome of a single vendor call.
type Status string

const (
	StatusSuccess    Status = "Success"
	StatusFailure    Status = "Failure"
	StatusParseError Status = "ParseError"
)

// CredentialBundle carries the session credentials lifted from a captured browser request.
// Presence is tracked separately so an empty value can be told apart from a missing one.
type CredentialBundle struct {
	Cookie       string `json:"cookie"`
	CSRFToken    string `json:"csrf_token"`
	HasCookie    bool   `json:"has_cookie"`
	HasCSRFToken bool   `json:"has_csrf_token"`
}

// Complete reports whether both credentials were found.
func (b CredentialBundle) Complete() bool {
	return b.HasCookie && b.HasCSRFToken
}

// ImageGroup is the create-image input for one instance.
type ImageGroup struct {
	InstanceID  string   `json:"instance_id"`
	DisplayName string   `json:"display_name"`
	DataDiskIDs []string `json:"data_disk_ids"`
}

// ImageName is the name the created image will carry.
func (g ImageGroup) ImageName() string {
	return g.DisplayName + "-image"
}

// Record is the result row for one target identifier.
type Record struct {
	TargetID     string    `json:"target_id"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Mapping links a source identifier to the identifier the vendor created from it
// (instance to image, disk to snapshot).
type Mapping struct {
	SourceID  string `json:"source_id"`
	CreatedID string `json:"created_id"`
}

// RunResult is everything one batch run produced.
type RunResult struct {
	ID         string    `json:"id"`
	Operation  Operation `json:"operation"`
	AccountID  string    `json:"account_id"`
	Region     string    `json:"region,omitempty"`
	Records    []Record  `json:"records"`
	Mappings   []Mapping `json:"mappings,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Scope limits which accounts and regions runs may address. Empty lists mean unrestricted.
type Scope struct {
	AccountIDs []string `json:"account_ids,omitempty"`
	Regions    []string `json:"regions,omitempty"`
}
