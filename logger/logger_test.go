package logger

import (
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func getLogFile() string {
	logDir := os.TempDir()
	logName := "chronos_test.log"
	return logDir + logName
}

func logAllLevels(testName string) {
	log.Tracef("%s:%s", testName, log.TraceLevel.String())
	log.Debugf("%s:%s", testName, log.DebugLevel.String())
	log.Infof("%s:%s", testName, log.InfoLevel.String())
	log.Errorf("%s:%s", testName, log.ErrorLevel.String())
	log.Warnf("%s:%s", testName, log.WarnLevel.String())
}

func testContains(t *testing.T, logFile string, testName string, level string, shouldContain bool) {
	b, err := ioutil.ReadFile(logFile)
	assert.Equal(t, err, nil)

	switch level {
	case log.TraceLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.TraceLevel.String())))
		if !shouldContain {
			break
		}
		fallthrough
	case log.DebugLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.DebugLevel.String())))
		if !shouldContain {
			break
		}
		fallthrough
	case log.InfoLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.InfoLevel.String())))
		if !shouldContain {
			break
		}
		fallthrough
	case log.WarnLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.WarnLevel.String())))
		if !shouldContain {
			break
		}
		fallthrough
	case log.ErrorLevel.String():
		assert.Equal(t, shouldContain, strings.Contains(string(b), fmt.Sprintf("%s:%s", testName, log.ErrorLevel.String())))
	}
}

func TestInitLogging(t *testing.T) {
	logFile := getLogFile()
	os.RemoveAll(logFile)

	// override with params to log to stdout only: nothing should land in the file
	InitLogging("", nil, true)
	testName := "test_param_override_stdout_only"
	logAllLevels(testName)
	_, err := os.Stat(logFile)
	assert.Equal(t, true, os.IsNotExist(err))

	// default info level with no params
	InitLogging(logFile, nil, false)
	assert.Equal(t, DefaultLogLevel, log.GetLevel().String())

	testName = "test_default_info_level"
	logAllLevels(testName)
	testContains(t, logFile, testName, "info", true)
	testContains(t, logFile, testName, "warn", true)
	testContains(t, logFile, testName, "error", true)
	testContains(t, logFile, testName, "trace", false)
	testContains(t, logFile, testName, "debug", false)

	// override to trace level
	InitLogging(logFile, &LogParams{Level: "trace"}, false)
	assert.Equal(t, log.TraceLevel.String(), log.GetLevel().String())

	testName = "test_param_override_trace_level"
	logAllLevels(testName)
	testContains(t, logFile, testName, "info", true)
	testContains(t, logFile, testName, "warn", true)
	testContains(t, logFile, testName, "error", true)
	testContains(t, logFile, testName, "trace", true)
	testContains(t, logFile, testName, "debug", true)

	// env override to debug level
	os.Setenv("LOG_LEVEL", "debug")
	InitLogging(logFile, nil, false)
	testName = "test_env_debug_level"
	logAllLevels(testName)
	testContains(t, logFile, testName, "info", true)
	testContains(t, logFile, testName, "warn", true)
	testContains(t, logFile, testName, "error", true)
	testContains(t, logFile, testName, "debug", true)
	testContains(t, logFile, testName, "trace", false)

	// invalid log format falls back to default
	os.Setenv("LOG_FORMAT", "yaml")
	InitLogging(logFile, nil, false)
	assert.Equal(t, logParams.GetLogFormat(), DefaultLogFormat)

	// invalid max files falls back to default
	InitLogging(logFile, &LogParams{MaxFiles: 1000}, false)
	assert.Equal(t, logParams.GetMaxFiles(), DefaultMaxLogFiles)

	// env overrides params even when params is non-nil
	os.Setenv("LOG_LEVEL", "info")
	InitLogging(logFile, &LogParams{Level: "trace"}, false)
	testName = "test_env_override_info_level"
	logAllLevels(testName)
	testContains(t, logFile, testName, "info", true)
	testContains(t, logFile, testName, "warn", true)
	testContains(t, logFile, testName, "error", true)
	testContains(t, logFile, testName, "debug", false)
	testContains(t, logFile, testName, "trace", false)

	os.RemoveAll(logFile)
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("LOG_FORMAT")
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive("Password"))
	assert.True(t, IsSensitive("diskSerialNumber"))
	assert.False(t, IsSensitive("imagePath"))
}

func TestScrubber(t *testing.T) {
	assert.Equal(t, []string{"**********"}, Scrubber([]string{"token=abc"}))
	assert.Equal(t, []string{"jobId=1"}, Scrubber([]string{"jobId=1"}))
}

func TestMapScrubber(t *testing.T) {
	in := map[string]string{"password": "hunter2", "jobId": "1"}
	out := MapScrubber(in)
	assert.Equal(t, "**********", out["password"])
	assert.Equal(t, "1", out["jobId"])
}
