package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSink struct {
	fails map[string]bool
	tried []string
}

func (f *fakeSink) MkdirAll(path string) error {
	f.tried = append(f.tried, path)
	if f.fails[path] {
		return errors.New("permission denied")
	}
	return nil
}

func TestResolveAppDataDirectoryFirstCandidateWins(t *testing.T) {
	sink := &fakeSink{fails: map[string]bool{}}
	dir, err := resolveAppDataDirectory(sink)
	assert.NoError(t, err)
	assert.NotEmpty(t, dir)
	assert.Equal(t, sink.tried[0], dir)
}

func TestResolveAppDataDirectoryFallsThroughToRAMDrive(t *testing.T) {
	sink := &fakeSink{fails: map[string]bool{}}
	// Force every candidate but the RAM-drive root to fail by pre-seeding
	// fails after the first probe (simulated via a second decorated sink).
	probe := &fakeSink{fails: map[string]bool{}}
	resolveAppDataDirectory(probe)
	for _, c := range probe.tried[:len(probe.tried)-2] {
		sink.fails[c] = true
	}
	dir, err := resolveAppDataDirectory(sink)
	assert.NoError(t, err)
	assert.NotEmpty(t, dir)
	assert.Equal(t, ramDriveRoot, dir)
}

func TestResolveAppDataDirectoryAllFail(t *testing.T) {
	probe := &fakeSink{fails: map[string]bool{}}
	resolveAppDataDirectory(probe)
	sink := &fakeSink{fails: map[string]bool{}}
	for _, c := range probe.tried {
		sink.fails[c] = true
	}
	_, err := resolveAppDataDirectory(sink)
	assert.Error(t, err)
}

func TestSystemRootDefault(t *testing.T) {
	t.Setenv("SystemRoot", "")
	assert.Equal(t, DefaultSystemRoot, SystemRoot())
}

func TestSystemRootFromEnv(t *testing.T) {
	t.Setenv("SystemRoot", `D:\Windows`)
	assert.Equal(t, `D:\Windows`, SystemRoot())
}

func TestDecodeSelftestOptions(t *testing.T) {
	var opts SelftestOptions
	err := Decode(map[string]interface{}{
		"include-live": "true",
		"report-path":  "report.txt",
	}, &opts)
	assert.NoError(t, err)
	assert.True(t, opts.IncludeLive)
	assert.Equal(t, "report.txt", opts.ReportPath)
}
