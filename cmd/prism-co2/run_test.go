package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renjie/prism-co2/pkg/adapters/storage"
	"github.com/renjie/prism-co2/pkg/config"
	"github.com/renjie/prism-co2/pkg/core/domain"
	"github.com/renjie/prism-co2/pkg/logging"
)

// writeGoLog 两个标准气运行段 (响应 = 参考 + 2), EQU 记录, 再接一组收尾标准气
func writeGoLog(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Type\tPC Date\tPC Time\tequ temp\tCO2 ppm\tequ press\tlicor press\tlab press\tH2O flow\tlicor flow\tvent flow\n")
	row := func(minute int, tag string, co2 float64) {
		fmt.Fprintf(&b, "%s\t01/05/24\t00:%02d:00\t15.%d\t%.1f\t0.1\t1010\t1012\t3\t100\t10\n", tag, minute, minute%10, co2)
	}
	for m := 0; m < 3; m++ {
		row(m, "STD2", 252)
	}
	for m := 3; m < 6; m++ {
		row(m, "STD3", 402)
	}
	for m := 6; m < 12; m++ {
		row(m, "EQU", 405+0.5*float64(m%2))
	}
	// 收尾标准气, EQU 段两侧都有运行段
	for m := 12; m < 15; m++ {
		row(m, "STD2", 252)
	}
	for m := 15; m < 18; m++ {
		row(m, "STD3", 402)
	}
	path := filepath.Join(dir, "go.txt")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRunPipeline(t *testing.T) {
	dir := t.TempDir()
	refs := filepath.Join(dir, "refs.yaml")
	require.NoError(t, os.WriteFile(refs, []byte(`
standards:
  - {channel: "2", co2: 250, start: "2024-01-01"}
  - {channel: "3", co2: 400, start: "2024-01-01"}
`), 0o644))

	cfg := config.Default()
	cfg.Input.GoLogs = []string{writeGoLog(t, dir)}
	cfg.Input.References = refs
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Parquet = true
	cfg.Storage.SQLitePath = filepath.Join(dir, "runs.db")
	require.NoError(t, cfg.Validate())

	ctx := domain.NewContext(context.Background(), domain.RunInfo{RunID: "smoke", Operator: "tester", Prefix: cfg.Prefix})
	logger, hook := logtest.NewNullLogger()
	require.NoError(t, runPipeline(ctx, cfg, logger))

	// run 模式不挂 metrics, 运行摘要只走日志
	var summary *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "pipeline finished" {
			summary = e
		}
	}
	require.NotNil(t, summary)
	assert.Equal(t, "smoke", summary.Data["run_id"])
	assert.GreaterOrEqual(t, summary.Data["calibrated"], 6)

	entries, err := os.ReadDir(cfg.Output.Dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"Tavastland_fCO2_data_20240501_to_20240501.txt",
		"Tavastland_full_20240501_to_20240501_smoke.parquet",
	}, names)

	repo, err := storage.Open(context.Background(), cfg.Storage.SQLitePath, logging.Discard())
	require.NoError(t, err)
	defer repo.Close()

	run, err := repo.GetRun(context.Background(), "smoke")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, 18, run.Rows)
	assert.GreaterOrEqual(t, run.Calibrated, 6)

	records, err := repo.ListRecords(context.Background(), "smoke", 6, 6)
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.InDelta(t, 403.0, records[0].Values[domain.ChannelXCO2Cal], 1e-9)
	assert.True(t, records[0].Flags[domain.ChannelXCO2Cal])
}

func TestRunPipeline_MissingInput(t *testing.T) {
	cfg := config.Default()
	cfg.Input.GoLogs = []string{filepath.Join(t.TempDir(), "missing.txt")}
	err := runPipeline(context.Background(), cfg, logging.Discard())
	assert.ErrorContains(t, err, "load GO logs")
}
