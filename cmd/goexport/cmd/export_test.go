package cmd

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goexport/internal/config"
	"github.com/dbsmedya/goexport/internal/exporter"
	"github.com/dbsmedya/goexport/internal/format"
	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/stream"
)

func runExportJob(t *testing.T, job string, force bool) (string, error) {
	t.Helper()
	origJob, origForce := exportJob, exportForce
	t.Cleanup(func() { exportJob, exportForce = origJob, origForce })
	exportJob = job
	exportForce = force

	var buf bytes.Buffer
	exportCmd.SetOut(&buf)
	exportCmd.SetErr(&buf)
	t.Cleanup(func() {
		exportCmd.SetOut(nil)
		exportCmd.SetErr(nil)
	})

	err := runExport(exportCmd, nil)
	return buf.String(), err
}

func TestExportCommandStructure(t *testing.T) {
	assert.Equal(t, "export", exportCmd.Use)
	assert.NotEmpty(t, exportCmd.Short)
	assert.NotEmpty(t, exportCmd.Long)
	assert.NotNil(t, exportCmd.Flags().Lookup("job"))
	assert.NotNil(t, exportCmd.Flags().Lookup("force"))
}

func TestRunExport_SQLite(t *testing.T) {
	cfg, _ := setupSQLiteConfig(t)

	out, err := runExportJob(t, "nightly", false)
	require.NoError(t, err)

	assert.Contains(t, out, "TestData > TestData.csv (3 rows)")
	assert.Contains(t, out, "TestData > TestData.fits (3 rows)")
	assert.Contains(t, out, "named > named.tsv (2 rows)")
	assert.Contains(t, out, "verified 2 table(s)")

	r, err := zip.OpenReader(cfg.Jobs["nightly"].Output)
	require.NoError(t, err)
	defer r.Close()

	entries := make(map[string]string)
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		entries[f.Name] = string(data)
	}
	require.Len(t, entries, 3)
	assert.Equal(t, "ID,Name,Score\n1,alpha,1.5\n2,beta,\n3,,3.25\n", entries["TestData.csv"])
	assert.Equal(t, "ID\tName\n1\talpha\n2\tbeta\n", entries["named.tsv"])
	assert.Zero(t, len(entries["TestData.fits"])%2880)
}

func TestRunExport_Force(t *testing.T) {
	setupSQLiteConfig(t)

	out, err := runExportJob(t, "nightly", true)
	require.NoError(t, err)
	assert.Contains(t, out, "TestData > TestData.csv (3 rows)")
}

func TestRunExport_UnknownJob(t *testing.T) {
	setupSQLiteConfig(t)

	_, err := runExportJob(t, "missing", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `job "missing" not found`)
}

func TestRunExport_FailurePrintsCompletedTables(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestConfig(createSQLiteSource(t, dir), dir)
	job := cfg.Jobs["nightly"]
	job.Tables = []config.TableConfig{
		{Table: "TestData", File: "TestData.csv"},
		{Table: "broken", Query: "SELECT * FROM Missing", File: "broken.csv"},
	}
	cfg.Jobs["nightly"] = job
	writeConfig(t, dir, cfg)

	out, err := runExportJob(t, "nightly", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export failed")
	assert.Contains(t, out, "TestData > TestData.csv (3 rows)")
	assert.NotContains(t, out, "broken.csv")
	assert.NotContains(t, out, "verified")

	// The archive is closed, so the completed entry is readable.
	r, err := zip.OpenReader(job.Output)
	require.NoError(t, err)
	defer r.Close()
	require.NotEmpty(t, r.File)
	assert.Equal(t, "TestData.csv", r.File[0].Name)
}

func TestRunExport_SHA256(t *testing.T) {
	dir := t.TempDir()
	cfg := createTestConfig(createSQLiteSource(t, dir), dir)
	cfg.Verification.Method = "sha256"
	writeConfig(t, dir, cfg)

	out, err := runExportJob(t, "nightly", false)
	require.NoError(t, err)
	assert.Contains(t, out, "verified 3 table(s), 8 rows (sha256)")
}

func TestRunTask_Cancelled(t *testing.T) {
	cfg, _ := setupSQLiteConfig(t)

	origJob := exportJob
	exportJob = "nightly"
	defer func() { exportJob = origJob }()

	dbManager, ds, err := connectSource(context.Background(), cfg)
	require.NoError(t, err)
	defer dbManager.Close()

	log := logger.NewNop()
	task, err := exporter.BuildTask(cfg, "nightly", ds, format.NewFactory(cfg.Formats), stream.NewFactory(), log)
	require.NoError(t, err)
	require.NoError(t, task.Open(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	exportCmd.SetOut(&buf)
	defer exportCmd.SetOut(nil)

	err = runTask(ctx, exportCmd, task, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export of job 'nightly' cancelled")
	assert.Contains(t, err.Error(), "nightly.zip is incomplete")
	assert.NotContains(t, buf.String(), "verified")
}
