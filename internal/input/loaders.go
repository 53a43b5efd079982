package input

import (
	"fmt"
	"io"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

// InstanceIDs reads the stop/start input: column ID_cvm.
func InstanceIDs(r io.Reader) ([]string, error) {
	return column(r, ColInstanceID)
}

// ImageIDs reads the delete-image input: column ImageId.
func ImageIDs(r io.Reader) ([]string, error) {
	return column(r, ColImageID)
}

// DiskIDs reads the create-snapshot input: column ID.
func DiskIDs(r io.Reader) ([]string, error) {
	return column(r, ColDiskID)
}

// SnapshotIDs reads the delete-snapshot input: column SnapshotId.
func SnapshotIDs(r io.Reader) ([]string, error) {
	return column(r, ColSnapshotID)
}

func column(r io.Reader, col string) ([]string, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, err
	}
	return t.Column(col)
}

// NameConflict records a later row that disagreed with the display name already chosen.
type NameConflict struct {
	InstanceID string `json:"instance_id"`
	Kept       string `json:"kept"`
	Ignored    string `json:"ignored"`
}

// ImageGroups reads the create-image input (ID_cvm, cvm_name, ID_dataDisk): one row per
// data disk, grouped per instance in first-seen order. The first non-empty name wins;
// disagreeing later names are returned as conflicts.
func ImageGroups(r io.Reader) ([]core.ImageGroup, []NameConflict, error) {
	t, err := ReadTable(r)
	if err != nil {
		return nil, nil, err
	}
	if err := t.Require(ColInstanceID, ColCVMName, ColDataDiskID); err != nil {
		return nil, nil, err
	}

	var (
		groups    []core.ImageGroup
		conflicts []NameConflict
		pos       = make(map[string]int)
		disks     = make(map[string]map[string]bool)
	)
	for _, row := range t.Rows {
		id := t.Get(row, ColInstanceID)
		if id == "" {
			continue
		}
		name := t.Get(row, ColCVMName)
		disk := t.Get(row, ColDataDiskID)

		i, ok := pos[id]
		if !ok {
			i = len(groups)
			pos[id] = i
			disks[id] = make(map[string]bool)
			groups = append(groups, core.ImageGroup{InstanceID: id, DisplayName: name})
		}
		g := &groups[i]

		switch {
		case g.DisplayName == "":
			g.DisplayName = name
		case name != "" && name != g.DisplayName:
			conflicts = append(conflicts, NameConflict{InstanceID: id, Kept: g.DisplayName, Ignored: name})
		}

		if disk != "" && !disks[id][disk] {
			disks[id][disk] = true
			g.DataDiskIDs = append(g.DataDiskIDs, disk)
		}
	}
	return groups, conflicts, nil
}

// Targets reads the input for op. Conflicts are only produced for create-image.
func Targets(op core.Operation, r io.Reader) ([]string, []core.ImageGroup, []NameConflict, error) {
	switch op {
	case core.OpCreateImage:
		groups, conflicts, err := ImageGroups(r)
		return nil, groups, conflicts, err
	case core.OpDeleteImage:
		ids, err := ImageIDs(r)
		return ids, nil, nil, err
	case core.OpCreateSnapshot:
		ids, err := DiskIDs(r)
		return ids, nil, nil, err
	case core.OpDeleteSnapshot:
		ids, err := SnapshotIDs(r)
		return ids, nil, nil, err
	case core.OpStopInstances, core.OpStartInstances:
		ids, err := InstanceIDs(r)
		return ids, nil, nil, err
	}
	return nil, nil, nil, fmt.Errorf("no input contract for operation %q", op)
}

// RequiredColumns lists the columns op reads.
func RequiredColumns(op core.Operation) []string {
	switch op {
	case core.OpCreateImage:
		return []string{ColInstanceID, ColCVMName, ColDataDiskID}
	case core.OpDeleteImage:
		return []string{ColImageID}
	case core.OpCreateSnapshot:
		return []string{ColDiskID}
	case core.OpDeleteSnapshot:
		return []string{ColSnapshotID}
	}
	return []string{ColInstanceID}
}
