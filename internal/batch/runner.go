// Package batch runs one vendor call per target identifier and turns every reply
// into exactly one result record, in input order.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
	"github.com/xiansir-zhe/cloud-tool/internal/gate"
	"github.com/xiansir-zhe/cloud-tool/internal/scope"
	"github.com/xiansir-zhe/cloud-tool/internal/tencent"
)

// Fixed payload values sent by the operations.
const (
	StopType           = "SOFT_FIRST"
	StoppedMode        = "KEEP_CHARGING"
	ImageDescription   = "CDC迁移"
	SnapshotNameSuffix = "_last_snapshot"
	DefaultRegionID    = 4
	boolFalse          = "FALSE"
)

var (
	ErrUnauthorized     = errors.New("access gate denied the destructive operation")
	ErrRegionRequired   = errors.New("region is required for compute operations")
	ErrAccountRequired  = errors.New("account id is required")
	ErrUnknownOperation = errors.New("unknown operation")
)

// Executor sends one envelope to the vendor. *tencent.Client implements it.
type Executor interface {
	Call(ctx context.Context, env tencent.Envelope, creds core.CredentialBundle, accountID, region string) (tencent.Reply, error)
}

// Sink receives every raw reply or call error, keyed by operation and target.
type Sink interface {
	Record(op core.Operation, targetID string, reply tencent.Reply, err error)
}

// Request carries what every operation needs besides its targets.
type Request struct {
	Credentials core.CredentialBundle
	AccountID   string
	Region      string
	// Secret is checked by the access gate for destructive operations.
	Secret string
}

// Targets holds the input for Run. ImageGroups is used by create-image, IDs by the rest.
type Targets struct {
	IDs         []string
	ImageGroups []core.ImageGroup
}

// Options configures a Runner.
type Options struct {
	// Workers bounds concurrent calls. Values below 2 run strictly sequentially.
	Workers  int
	RegionID int
	Gate     gate.Authorizer
	Scope    *scope.Checker
	Sink     Sink
	Logger   zerolog.Logger
}

// Runner executes batch operations.
type Runner struct {
	exec     Executor
	gate     gate.Authorizer
	scope    *scope.Checker
	sink     Sink
	workers  int
	regionID int
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewRunner creates a Runner. A nil Gate denies every destructive run.
func NewRunner(exec Executor, opts Options) *Runner {
	r := &Runner{
		exec:     exec,
		gate:     opts.Gate,
		scope:    opts.Scope,
		sink:     opts.Sink,
		workers:  opts.Workers,
		regionID: opts.RegionID,
		logger:   opts.Logger,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
	if r.gate == nil {
		r.gate = gate.DenyAll
	}
	if r.workers < 1 {
		r.workers = 1
	}
	if r.regionID == 0 {
		r.regionID = DefaultRegionID
	}
	return r
}

// item is one prepared call.
type item struct {
	target       string
	env          tencent.Envelope
	createdField string
}

// Run dispatches op over targets.
func (r *Runner) Run(ctx context.Context, op core.Operation, req Request, t Targets) (*core.RunResult, error) {
	switch op {
	case core.OpStopInstances:
		return r.StopInstances(ctx, req, t.IDs)
	case core.OpStartInstances:
		return r.StartInstances(ctx, req, t.IDs)
	case core.OpCreateImage:
		return r.CreateImages(ctx, req, t.ImageGroups)
	case core.OpDeleteImage:
		return r.DeleteImages(ctx, req, t.IDs)
	case core.OpCreateSnapshot:
		return r.CreateSnapshots(ctx, req, t.IDs)
	case core.OpDeleteSnapshot:
		return r.DeleteSnapshots(ctx, req, t.IDs)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
}

// StopInstances soft-stops each instance, keeping it charged.
func (r *Runner) StopInstances(ctx context.Context, req Request, instanceIDs []string) (*core.RunResult, error) {
	items := make([]item, 0, len(instanceIDs))
	for _, id := range instanceIDs {
		items = append(items, item{
			target: id,
			env: tencent.NewEnvelope(core.OpStopInstances, req.Region, 0, map[string]any{
				"InstanceIds": []string{id},
				"StopType":    StopType,
				"StoppedMode": StoppedMode,
			}),
		})
	}
	return r.execute(ctx, core.OpStopInstances, req, items)
}

// StartInstances starts each instance.
func (r *Runner) StartInstances(ctx context.Context, req Request, instanceIDs []string) (*core.RunResult, error) {
	items := make([]item, 0, len(instanceIDs))
	for _, id := range instanceIDs {
		items = append(items, item{
			target: id,
			env: tencent.NewEnvelope(core.OpStartInstances, req.Region, 0, map[string]any{
				"InstanceIds": []string{id},
			}),
		})
	}
	return r.execute(ctx, core.OpStartInstances, req, items)
}

// CreateImages creates one image per instance group, including its data disks.
func (r *Runner) CreateImages(ctx context.Context, req Request, groups []core.ImageGroup) (*core.RunResult, error) {
	items := make([]item, 0, len(groups))
	for _, g := range groups {
		disks := g.DataDiskIDs
		if disks == nil {
			disks = []string{}
		}
		items = append(items, item{
			target: g.InstanceID,
			env: tencent.NewEnvelope(core.OpCreateImage, req.Region, 0, map[string]any{
				"InstanceId":       g.InstanceID,
				"ImageName":        g.ImageName(),
				"ImageDescription": ImageDescription,
				"ForcePoweroff":    boolFalse,
				"Sysprep":          boolFalse,
				"DataDiskIds":      disks,
			}),
			createdField: "ImageId",
		})
	}
	return r.execute(ctx, core.OpCreateImage, req, items)
}

// DeleteImages deletes each image together with the snapshots bound to it.
func (r *Runner) DeleteImages(ctx context.Context, req Request, imageIDs []string) (*core.RunResult, error) {
	items := make([]item, 0, len(imageIDs))
	for _, id := range imageIDs {
		items = append(items, item{
			target: id,
			env: tencent.NewEnvelope(core.OpDeleteImage, req.Region, 0, map[string]any{
				"ImageIds":         []string{id},
				"DeleteBindedSnap": true,
			}),
		})
	}
	return r.execute(ctx, core.OpDeleteImage, req, items)
}

// CreateSnapshots snapshots each disk as "<disk>_last_snapshot".
func (r *Runner) CreateSnapshots(ctx context.Context, req Request, diskIDs []string) (*core.RunResult, error) {
	items := make([]item, 0, len(diskIDs))
	for _, id := range diskIDs {
		items = append(items, item{
			target: id,
			env: tencent.NewEnvelope(core.OpCreateSnapshot, "", r.regionID, map[string]any{
				"DiskId":       id,
				"SnapshotName": id + SnapshotNameSuffix,
			}),
			createdField: "SnapshotId",
		})
	}
	return r.execute(ctx, core.OpCreateSnapshot, req, items)
}

// DeleteSnapshots deletes each snapshot.
func (r *Runner) DeleteSnapshots(ctx context.Context, req Request, snapshotIDs []string) (*core.RunResult, error) {
	items := make([]item, 0, len(snapshotIDs))
	for _, id := range snapshotIDs {
		items = append(items, item{
			target: id,
			env: tencent.NewEnvelope(core.OpDeleteSnapshot, "", r.regionID, map[string]any{
				"SnapshotIds": []string{id},
			}),
		})
	}
	return r.execute(ctx, core.OpDeleteSnapshot, req, items)
}

// validate runs every pre-run check. Nothing is sent when it fails.
func (r *Runner) validate(op core.Operation, req Request) error {
	if req.AccountID == "" {
		return ErrAccountRequired
	}
	if op.Plane() == core.PlaneCompute && req.Region == "" {
		return ErrRegionRequired
	}
	if r.scope != nil {
		if err := r.scope.CheckTarget(req.AccountID, r.regionFor(op, req)); err != nil {
			return err
		}
	}
	if op.Destructive() && !r.gate.Authorize(req.Secret) {
		return ErrUnauthorized
	}
	return nil
}

// regionFor is the region sent on the wire: block-storage calls never carry one.
func (r *Runner) regionFor(op core.Operation, req Request) string {
	if op.Plane() == core.PlaneBlockStorage {
		return ""
	}
	return req.Region
}

func (r *Runner) execute(ctx context.Context, op core.Operation, req Request, items []item) (*core.RunResult, error) {
	if err := r.validate(op, req); err != nil {
		return nil, err
	}

	region := r.regionFor(op, req)
	result := &core.RunResult{
		ID:        r.newID(),
		Operation: op,
		AccountID: req.AccountID,
		Region:    region,
		Records:   make([]core.Record, len(items)),
		StartedAt: r.now(),
	}
	created := make([]string, len(items))

	logger := r.logger.With().Str("run_id", result.ID).Str("operation", string(op)).Logger()
	logger.Info().Int("targets", len(items)).Msg("batch started")

	do := func(i int) {
		it := items[i]
		var out Outcome
		if err := ctx.Err(); err != nil {
			out = ClassifyError(err)
			r.emit(op, it.target, nil, err)
		} else {
			reply, err := r.exec.Call(ctx, it.env, req.Credentials, req.AccountID, region)
			r.emit(op, it.target, reply, err)
			if err != nil {
				out = ClassifyError(err)
			} else {
				out = Classify(reply, it.createdField)
			}
		}

		result.Records[i] = core.Record{
			TargetID:     it.target,
			Status:       out.Status,
			ErrorMessage: out.ErrorMessage,
			RequestID:    out.RequestID,
			Timestamp:    r.now(),
		}
		if out.Status == core.StatusSuccess {
			created[i] = out.CreatedID
		}

		logger.Debug().
			Str("target", it.target).
			Str("action", it.env.Action).
			Str("status", string(out.Status)).
			Msg("item done")
	}

	if r.workers == 1 || len(items) < 2 {
		for i := range items {
			do(i)
		}
	} else {
		sem := make(chan struct{}, r.workers)
		var wg sync.WaitGroup
		for i := range items {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				do(i)
			}(i)
		}
		wg.Wait()
	}

	for i, id := range created {
		if id != "" {
			result.Mappings = append(result.Mappings, core.Mapping{SourceID: items[i].target, CreatedID: id})
		}
	}
	result.FinishedAt = r.now()

	counts := map[core.Status]int{}
	for _, rec := range result.Records {
		counts[rec.Status]++
	}
	logger.Info().
		Int("total", len(result.Records)).
		Int("success", counts[core.StatusSuccess]).
		Int("failure", counts[core.StatusFailure]).
		Int("parse_error", counts[core.StatusParseError]).
		Msg("batch finished")

	return result, nil
}

func (r *Runner) emit(op core.Operation, target string, reply tencent.Reply, err error) {
	if r.sink != nil {
		r.sink.Record(op, target, reply, err)
	}
}
