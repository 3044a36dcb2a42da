package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViaSnake/mcaselector/internal/cli"
	"github.com/ViaSnake/mcaselector/internal/errors"
	"github.com/ViaSnake/mcaselector/internal/field"
	"github.com/ViaSnake/mcaselector/internal/model"
	"github.com/ViaSnake/mcaselector/internal/storage/region"
	"github.com/ViaSnake/mcaselector/internal/testutil"
	"github.com/ViaSnake/mcaselector/internal/version"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := cli.NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func worldDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteRegion(t, dir, 0, 0,
		testutil.Chunk(0, 0, testutil.FlatTree(3465, 10, 100, "full", 0)),
		testutil.Chunk(5, 7, testutil.FlatTree(3465, 10, 90000, "full", -4)),
	)
	testutil.WriteRegion(t, dir, -1, 0,
		testutil.Chunk(3, 3, testutil.LegacyTree(1343, 10, 100, "full")),
	)
	return dir
}

func TestEditCommand_JSONReport(t *testing.T) {
	dir := worldDir(t)

	out, err := execute(t, "edit", dir, "--filter", "InhabitedTime < 1m", "--change", "LastUpdate=0", "--json",
		"--read-threads", "2", "--max-loaded-files", "1")
	require.NoError(t, err)

	var report model.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Totals.Containers)
	assert.Equal(t, 3, report.Totals.Chunks)
	assert.Equal(t, 2, report.Totals.Selected)
	assert.Equal(t, 2, report.Totals.Edited)
	assert.Equal(t, 2, report.Totals.Written)
	assert.Equal(t, 1, report.PeakResident)

	c, err := region.Load(filepath.Join(dir, region.FileName(0, 0)))
	require.NoError(t, err)
	v, ok := field.NewLastUpdate().GetOldValue(version.Default(), c.Chunk(model.ChunkCoord{X: 5, Z: 7}))
	require.True(t, ok)
	assert.Equal(t, int64(10), v)
}

func TestEditCommand_Errors(t *testing.T) {
	dir := worldDir(t)

	_, err := execute(t, "edit", dir, "--change", "Biome=plains")
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.GetCode(err))

	_, err = execute(t, "edit", dir, "--filter", "yPos ~ 1", "--change", "LastUpdate=0")
	assert.Equal(t, errors.ErrCodeFilterConfiguration, errors.GetCode(err))

	_, err = execute(t, "edit", filepath.Join(dir, "nope"), "--change", "LastUpdate=0")
	assert.Equal(t, errors.ErrCodeInvalidArgument, errors.GetCode(err))

	_, err = execute(t, "edit", dir, "--change", "LastUpdate=0", "--read-threads", "0")
	assert.Error(t, err)
}

func TestEditCommand_ReportsFailedContainers(t *testing.T) {
	dir := worldDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, region.FileName(4, 4)), []byte("junk"), 0o644))

	out, err := execute(t, "edit", dir, "--force", "Status=full")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 containers failed")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "Containers: 3 (done 2, failed 1, written 2)")
}

func TestSelectCommand(t *testing.T) {
	dir := worldDir(t)
	before, err := os.ReadFile(filepath.Join(dir, region.FileName(0, 0)))
	require.NoError(t, err)

	out, err := execute(t, "select", dir, "--filter", "yPos == 0")
	require.NoError(t, err)
	assert.Contains(t, out, "(dry run)")
	assert.Contains(t, out, "3 scanned, 2 selected, 0 edited")

	after, err := os.ReadFile(filepath.Join(dir, region.FileName(0, 0)))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = execute(t, "select", dir)
	assert.Equal(t, errors.ErrCodeFilterConfiguration, errors.GetCode(err))
}

func TestRunCommand(t *testing.T) {
	dir := worldDir(t)
	job := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(job, []byte(`
paths: [`+dir+`]
query: "Status == full AND InhabitedTime > 1h"
edits:
  - field: InhabitedTime
    value: "0"
`), 0o644))

	out, err := execute(t, "run", job, "--dry-run", "--json")
	require.NoError(t, err)

	var report model.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Totals.Selected)
	assert.Equal(t, 1, report.Totals.Edited)
	assert.Equal(t, 0, report.Totals.Written)
}

func TestInfoCommand(t *testing.T) {
	dir := worldDir(t)

	out, err := execute(t, "info", filepath.Join(dir, region.FileName(0, 0)), "--json")
	require.NoError(t, err)

	var info struct {
		RegionX int `json:"region_x"`
		Chunks  []struct {
			X           int               `json:"x"`
			Z           int               `json:"z"`
			DataVersion int32             `json:"data_version"`
			Layout      string            `json:"layout"`
			Compression string            `json:"compression"`
			Fields      map[string]string `json:"fields"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Len(t, info.Chunks, 2)
	assert.Equal(t, "flat", info.Chunks[1].Layout)
	assert.Equal(t, "zlib", info.Chunks[1].Compression)
	assert.Equal(t, 5, info.Chunks[1].X)
	assert.Equal(t, "90000", info.Chunks[1].Fields["InhabitedTime"])
	assert.Equal(t, "full", info.Chunks[1].Fields["Status"])

	out, err = execute(t, "info", filepath.Join(dir, region.FileName(-1, 0)))
	require.NoError(t, err)
	assert.Contains(t, out, "legacy")
	assert.Contains(t, out, "LastUpdate")
}
