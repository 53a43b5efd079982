package input

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/xiansir-zhe/cloud-tool/internal/core"
)

func TestInstanceIDsDedupInOrder(t *testing.T) {
	csv := "ID_cvm,cvm_name\nins-2,b\n ins-1 ,a\nins-2,b\n,empty\nins-3,c\n"
	ids, err := InstanceIDs(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, []string{"ins-2", "ins-1", "ins-3"}, ids)
}

func TestMissingColumn(t *testing.T) {
	_, err := SnapshotIDs(strings.NewReader("DiskId,Other\nd,1\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, []string{"SnapshotId"}, mce.Missing)
	assert.Equal(t, []string{"DiskId", "Other"}, mce.Header)
}

func TestHeaderOnlyYieldsNoTargets(t *testing.T) {
	ids, err := DiskIDs(strings.NewReader("ID\n"))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEmptyFileIsError(t *testing.T) {
	_, err := ImageIDs(strings.NewReader(""))
	assert.Error(t, err)
}

func TestBOMIsStripped(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("ImageId\nimg-1\n")...)
	ids, err := ImageIDs(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"img-1"}, ids)
}

func TestGBKFallback(t *testing.T) {
	utf8Text := "ID_cvm,cvm_name,ID_dataDisk\nins-1,数据库主机,disk-1\n"
	gbk, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(utf8Text))
	require.NoError(t, err)

	groups, _, err := ImageGroups(bytes.NewReader(gbk))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "数据库主机", groups[0].DisplayName)
	assert.Equal(t, "数据库主机-image", groups[0].ImageName())
}

func TestImageGroups(t *testing.T) {
	csv := strings.Join([]string{
		"ID_cvm,cvm_name,ID_dataDisk",
		"ins-b,beta,disk-1",
		"ins-a,alpha,disk-2",
		"ins-b,beta-renamed,disk-3",
		"ins-b,beta,disk-1",
		"ins-a,alpha,",
		"ins-c,,",
		"ins-c,gamma,disk-9",
	}, "\n")

	groups, conflicts, err := ImageGroups(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, []core.ImageGroup{
		{InstanceID: "ins-b", DisplayName: "beta", DataDiskIDs: []string{"disk-1", "disk-3"}},
		{InstanceID: "ins-a", DisplayName: "alpha", DataDiskIDs: []string{"disk-2"}},
		{InstanceID: "ins-c", DisplayName: "gamma", DataDiskIDs: []string{"disk-9"}},
	}, groups)

	require.Len(t, conflicts, 1)
	assert.Equal(t, NameConflict{InstanceID: "ins-b", Kept: "beta", Ignored: "beta-renamed"}, conflicts[0])
}

func TestImageGroupsWithoutDisks(t *testing.T) {
	groups, _, err := ImageGroups(strings.NewReader("ID_cvm,cvm_name,ID_dataDisk\nins-1,solo,\n"))
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0].DataDiskIDs)
}

func TestTargetsDispatch(t *testing.T) {
	ids, _, _, err := Targets(core.OpStopInstances, strings.NewReader("ID_cvm\nins-1\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ins-1"}, ids)

	_, groups, _, err := Targets(core.OpCreateImage, strings.NewReader("ID_cvm,cvm_name,ID_dataDisk\nins-1,n,d\n"))
	require.NoError(t, err)
	assert.Len(t, groups, 1)

	_, _, _, err = Targets(core.Operation("reboot"), strings.NewReader("ID_cvm\nins-1\n"))
	assert.Error(t, err)

	assert.Equal(t, []string{"ID"}, RequiredColumns(core.OpCreateSnapshot))
}

func TestShortRowsArePadded(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("a,b,c\n1\n"))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "", tbl.Get(tbl.Rows[0], "c"))
	assert.Equal(t, "1", tbl.Get(tbl.Rows[0], "a"))
}
