package exporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goexport/internal/config"
	"github.com/dbsmedya/goexport/internal/logger"
	"github.com/dbsmedya/goexport/internal/schema"
	"github.com/dbsmedya/goexport/internal/sqlutil"
	"github.com/dbsmedya/goexport/internal/stream"
	"github.com/dbsmedya/goexport/internal/verifier"
)

func createTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Source.Database = "MYDB_Test"
	cfg.Processing.QueryTimeoutSeconds = 30
	cfg.Processing.ProgressInterval = 500
	cfg.Jobs = map[string]config.JobConfig{
		"nightly": {
			Output:      "out/nightly.tar.gz",
			Compression: "gzip",
			Archival:    "tar",
			Tables: []config.TableConfig{
				{Table: "TestData", File: "TestData.csv"},
				{Schema: "sales", Table: "Orders", File: "orders.dat", Format: "fits"},
				{Query: "SELECT 1 AS one", File: "one.tsv"},
			},
			Verification: &config.VerificationConfig{Method: "sha256"},
		},
		"broken": {
			Output:   "out/broken.zip",
			Archival: "rar",
			Tables:   []config.TableConfig{{Table: "TestData", File: "TestData.csv"}},
		},
	}
	return cfg
}

func TestBuildTask(t *testing.T) {
	cfg := createTestConfig()
	ds := schema.NewDataset("MYDB", sqlutil.SQLServer, nil, "MYDB_Test")

	task, err := BuildTask(cfg, "nightly", ds, newTestFormats(), stream.NewFactory(), logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "out/nightly.tar.gz", task.URI)
	assert.Equal(t, stream.ArchivalTar, task.Archival)
	assert.Equal(t, stream.CompressionGzip, task.Compression)
	assert.Equal(t, verifier.MethodSHA256, task.Verification)
	assert.Equal(t, 30*time.Second, task.QueryTimeout)
	assert.Equal(t, 500, task.ProgressInterval)

	require.Len(t, task.Sources, 3)
	require.Len(t, task.Destinations, 3)

	assert.Equal(t, "SELECT * FROM [MYDB_Test].[dbo].[TestData]", task.Sources[0].SQL())
	assert.Equal(t, "SELECT * FROM [MYDB_Test].[sales].[Orders]", task.Sources[1].SQL())
	assert.Equal(t, Destination{FileName: "orders.dat", Format: "fits"}, task.Destinations[1])

	assert.False(t, task.Sources[2].IsTable())
	assert.Equal(t, "one", task.Sources[2].Name())
	assert.Equal(t, "SELECT 1 AS one", task.Sources[2].SQL())
}

func TestBuildTask_SkipVerification(t *testing.T) {
	cfg := createTestConfig()
	cfg.Verification.SkipVerification = true
	ds := schema.NewDataset("MYDB", sqlutil.SQLServer, nil, "MYDB_Test")

	task, err := BuildTask(cfg, "nightly", ds, newTestFormats(), stream.NewFactory(), nil)
	require.NoError(t, err)
	assert.Equal(t, verifier.MethodSkip, task.Verification)
}

func TestBuildTask_Errors(t *testing.T) {
	cfg := createTestConfig()
	ds := schema.NewDataset("MYDB", sqlutil.SQLServer, nil, "MYDB_Test")

	_, err := BuildTask(nil, "nightly", ds, newTestFormats(), stream.NewFactory(), nil)
	assert.Error(t, err)

	_, err = BuildTask(cfg, "nightly", nil, newTestFormats(), stream.NewFactory(), nil)
	assert.Error(t, err)

	_, err = BuildTask(cfg, "missing", ds, newTestFormats(), stream.NewFactory(), nil)
	assert.Error(t, err)

	_, err = BuildTask(cfg, "broken", ds, newTestFormats(), stream.NewFactory(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job broken")
}
