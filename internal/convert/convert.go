// Package convert turns a console instance export into a JSON or YAML list of
// instance definitions for recreating the instances elsewhere.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xiansir-zhe/cloud-tool/internal/input"
)

// Export column names.
const (
	colName             = "实例名"
	colImageID          = "镜像Id"
	colSubnetID         = "子网Id"
	colInstanceType     = "实例规格"
	colAvailabilityZone = "可用区"
	colVpcID            = "VpcId"
	colPrivateIP        = "主IPv4内网IP"
	colSystemDiskType   = "系统盘类型"
	colSystemDiskSize   = "系统盘大小(GiB)"

	// MaxDataDisks is the number of data disk column pairs in an export.
	MaxDataDisks = 4
)

func dataDiskTypeCol(i int) string { return fmt.Sprintf("数据盘_%d_类型", i) }
func dataDiskSizeCol(i int) string { return fmt.Sprintf("数据盘_%d_大小（GiB）", i) }

// Disk is a system or data disk.
type Disk struct {
	Type string `json:"type" yaml:"type"`
	Size int    `json:"size" yaml:"size"`
}

// Instance is one converted row.
type Instance struct {
	Name             string `json:"name" yaml:"name"`
	ImageID          string `json:"image_id" yaml:"image_id"`
	SubnetID         string `json:"subnet_id" yaml:"subnet_id"`
	InstanceType     string `json:"instance_type" yaml:"instance_type"`
	AvailabilityZone string `json:"availability_zone" yaml:"availability_zone"`
	VpcID            string `json:"vpc_id" yaml:"vpc_id"`
	PrivateIP        string `json:"private_ip" yaml:"private_ip"`
	SystemDisk       Disk   `json:"system_disk" yaml:"system_disk"`
	DataDisks        []Disk `json:"data_disks" yaml:"data_disks"`
}

// Format selects the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
}

// ReadInstances reads an instance export. Data disks are kept only when both their
// type and size are set; a size that is not an integer is an error naming the row.
func ReadInstances(r io.Reader) ([]Instance, error) {
	t, err := input.ReadTable(r)
	if err != nil {
		return nil, err
	}
	required := []string{
		colName, colImageID, colSubnetID, colInstanceType, colAvailabilityZone,
		colVpcID, colPrivateIP, colSystemDiskType, colSystemDiskSize,
	}
	if err := t.Require(required...); err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(t.Rows))
	for n, row := range t.Rows {
		line := n + 2
		sysSize, err := atoi(t.Get(row, colSystemDiskSize))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", line, colSystemDiskSize, err)
		}

		inst := Instance{
			Name:             t.Get(row, colName),
			ImageID:          t.Get(row, colImageID),
			SubnetID:         t.Get(row, colSubnetID),
			InstanceType:     t.Get(row, colInstanceType),
			AvailabilityZone: t.Get(row, colAvailabilityZone),
			VpcID:            t.Get(row, colVpcID),
			PrivateIP:        t.Get(row, colPrivateIP),
			SystemDisk:       Disk{Type: t.Get(row, colSystemDiskType), Size: sysSize},
			DataDisks:        []Disk{},
		}

		for i := 0; i < MaxDataDisks; i++ {
			typ, size := t.Get(row, dataDiskTypeCol(i)), t.Get(row, dataDiskSizeCol(i))
			if typ == "" || size == "" {
				continue
			}
			n, err := atoi(size)
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", line, dataDiskSizeCol(i), err)
			}
			inst.DataDisks = append(inst.DataDisks, Disk{Type: typ, Size: n})
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		// Exports sometimes render sizes as "50.0".
		f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("invalid size %q", s)
		}
		return int(f), nil
	}
	return n, nil
}

// Write encodes instances to w. JSON is indented by four spaces and keeps non-ASCII text.
func Write(w io.Writer, instances []Instance, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(instances); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "    ")
		if err := enc.Encode(instances); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		_, err := w.Write(buf.Bytes())
		return err
	}
}
