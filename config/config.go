// Package config resolves host paths and decodes operator-supplied
// configuration structs for the CLI and selftest report.
package config

import (
	"os"
	"path/filepath"
	"sync"

	log "github.com/chronos-imaging/chronos/logger"
	"github.com/mitchellh/mapstructure"
)

const (
	// DefaultSystemRoot is used when the SystemRoot environment variable
	// is unset, matching the documented Windows default.
	DefaultSystemRoot = `C:\Windows`

	ramDriveRoot = `X:\Chronos`
	appDirName   = "Chronos"
)

var (
	appDataOnce sync.Once
	appDataDir  string
	appDataErr  error
)

// SystemRoot returns the SystemRoot environment variable, falling back to
// the documented Windows default when unset.
func SystemRoot() string {
	if root := os.Getenv("SystemRoot"); root != "" {
		return root
	}
	return DefaultSystemRoot
}

// dirSink abstracts directory-creation so AppDataDirectory's candidate
// search can be exercised without touching the real filesystem in tests.
type dirSink interface {
	MkdirAll(path string) error
}

type osDirSink struct{}

func (osDirSink) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

// AppDataDirectory resolves a writable application-data directory by trying,
// in order: the user-local application-data folder, the folder containing
// the running executable, a RAM-drive root (X:\Chronos), and the system
// temp directory. The first candidate that supports directory creation
// wins; the result is cached for the lifetime of the process.
func AppDataDirectory() (string, error) {
	appDataOnce.Do(func() {
		appDataDir, appDataErr = resolveAppDataDirectory(osDirSink{})
	})
	return appDataDir, appDataErr
}

func resolveAppDataDirectory(sink dirSink) (string, error) {
	candidates := make([]string, 0, 4)

	if userLocal, err := os.UserCacheDir(); err == nil && userLocal != "" {
		candidates = append(candidates, filepath.Join(userLocal, appDirName))
	}

	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), appDirName))
	}

	candidates = append(candidates, ramDriveRoot)
	candidates = append(candidates, filepath.Join(os.TempDir(), appDirName))

	var lastErr error
	for _, candidate := range candidates {
		log.Tracef("AppDataDirectory: trying candidate=%v", candidate)
		if err := sink.MkdirAll(candidate); err == nil {
			return candidate, nil
		} else {
			lastErr = err
		}
	}
	return "", lastErr
}

// Decode populates dst (a pointer to a struct tagged with `mapstructure`)
// from a generic map, the way selftest/report options arrive from CLI flags
// or a config file.
func Decode(input map[string]interface{}, dst interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// SelftestOptions configures a --selftest run.
type SelftestOptions struct {
	IncludeLive bool   `mapstructure:"include-live"`
	ReportPath  string `mapstructure:"report-path"`
}
