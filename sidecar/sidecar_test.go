package sidecar

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-imaging/chronos/cerrors"
	"github.com/chronos-imaging/chronos/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "disk0.vhdx")

	used := uint64(1024)
	original := model.ImageSidecar{
		ChronosVersion:   "1.0.0",
		CreatedAtUTC:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		PartitionStyle:   model.PartitionStyleGPT,
		DiskModel:        "Contoso SSD",
		DiskSizeBytes:    1 << 30,
		SourceDiskNumber: 0,
		Partitions: []model.SidecarPartition{
			{PartitionNumber: 1, Size: 100 << 20, Offset: 1 << 20, UsedSpace: &used},
		},
		UsedSnapshot: true,
	}

	require.NoError(t, Write(imagePath, original))

	loaded, err := Read(imagePath)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
}

func TestPathForAppendsSuffix(t *testing.T) {
	assert.Equal(t, `C:\backups\disk0.vhdx.chronos.json`, PathFor(`C:\backups\disk0.vhdx`))
}

func TestReadMissingReturnsNotFound(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.vhdx"))
	require.Error(t, err)
	assert.True(t, cerrors.Is(err, cerrors.NotFound))
}

func TestRemoveMissingIsNotAnError(t *testing.T) {
	assert.NoError(t, Remove(filepath.Join(t.TempDir(), "missing.vhdx")))
}
