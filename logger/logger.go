// Package logger provides the process-wide structured logger used by every
// CHRONOS component. It mirrors a single logrus instance with a rotating
// file hook and an optional console hook, plus the entry/exit trace
// convention (">>>>> FuncName" / "<<<<< FuncName") used throughout the
// windows/, diskenum/, snapshot/, vhd/, backupengine/ and restoreengine/
// packages.
package logger

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh/terminal"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = TextFormat
	DefaultMaxLogFiles = 10
	MaxFilesLimit      = 20
	DefaultMaxLogSize  = 100  // in MB
	MaxLogSizeLimit    = 1024 // in MB
	JSONFormat         = "json"
	TextFormat         = "text"
)

// LogParams configures logging.
type LogParams struct {
	Level      string
	File       string
	MaxFiles   int
	MaxSizeMiB int
	Format     string
}

// Logr is a handle returned from InitLogging; it wraps the source-annotated
// logrus entry used by every package-level Trace/Debug/Info/... call.
type Logr struct {
	ctx      context.Context
	logEntry *log.Entry
	cl       io.Closer
}

var (
	logParams LogParams
	initMutex sync.Mutex
)

func (l LogParams) isValidLevel() bool {
	switch l.Level {
	case "trace", "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func (l LogParams) isValidLogFormat() bool {
	switch l.Format {
	case "json", "text":
		return true
	default:
		return false
	}
}

func (l LogParams) isValidMaxLogFiles() bool {
	return l.MaxFiles != 0 && l.MaxFiles <= MaxFilesLimit
}

func (l LogParams) isValidMaxLogSize() bool {
	return l.MaxSizeMiB != 0 && l.MaxSizeMiB <= MaxLogSizeLimit
}

func (l LogParams) GetLevel() string {
	if !l.isValidLevel() {
		return DefaultLogLevel
	}
	return l.Level
}

func (l LogParams) GetFile() string {
	return l.File
}

func (l LogParams) GetMaxFiles() int {
	if !l.isValidMaxLogFiles() {
		return DefaultMaxLogFiles
	}
	return l.MaxFiles
}

func (l LogParams) GetMaxSize() int {
	if !l.isValidMaxLogSize() {
		return DefaultMaxLogSize
	}
	return l.MaxSizeMiB
}

func (l LogParams) GetLogFormat() string {
	if !l.isValidLogFormat() {
		return DefaultLogFormat
	}
	return l.Format
}

func (l LogParams) UseJsonFormatter() bool {
	return l.Format == JSONFormat
}

func (l LogParams) UseTextFormatter() bool {
	return l.Format == TextFormat
}

// Fields is an alias for logrus.Fields so callers don't need to import logrus.
type Fields = log.Fields

func updateLogParamsFromEnv() {
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		logParams.Level = level
	}
	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		logParams.File = logFile
	}
	if maxSize := os.Getenv("LOG_MAX_SIZE"); maxSize != "" {
		if size, err := strconv.ParseInt(maxSize, 0, 0); err == nil {
			logParams.MaxSizeMiB = int(size)
		}
	}
	if maxFiles := os.Getenv("LOG_MAX_FILES"); maxFiles != "" {
		if fileCount, err := strconv.ParseInt(maxFiles, 0, 0); err == nil {
			logParams.MaxFiles = int(fileCount)
		}
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		logParams.Format = logFormat
	}
}

// InitLogging initializes the package-level logger. When params is nil,
// defaults are used and then overridden by LOG_LEVEL/LOG_FILE/LOG_MAX_SIZE/
// LOG_MAX_FILES/LOG_FORMAT environment variables. alsoLogToStderr adds a
// console hook in addition to (or instead of) the rotating file hook.
func InitLogging(logName string, params *LogParams, alsoLogToStderr bool) (err error, l *Logr) {
	initMutex.Lock()
	defer initMutex.Unlock()

	if params == nil {
		logParams.Level = DefaultLogLevel
		logParams.MaxSizeMiB = DefaultMaxLogSize
		logParams.MaxFiles = DefaultMaxLogFiles
		logParams.Format = DefaultLogFormat
	} else {
		logParams = *params
	}

	if logName != "" {
		logParams.File = logName
	}

	updateLogParamsFromEnv()

	// No output except through the hooks.
	log.SetOutput(ioutil.Discard)

	logEntry := sourced()
	lg := Logr{nil, logEntry, nil}

	if logParams.GetFile() != "" {
		if err = AddFileHook(); err != nil {
			return err, &lg
		}
	}
	if alsoLogToStderr {
		if err = AddConsoleHook(); err != nil {
			return err, &lg
		}
	}

	level, err := log.ParseLevel(logParams.GetLevel())
	if err != nil {
		return err, &lg
	}
	log.SetLevel(level)

	log.WithFields(log.Fields{
		"logLevel":        log.GetLevel().String(),
		"logFileLocation": logParams.GetFile(),
		"alsoLogToStderr": alsoLogToStderr,
	}).Info("Initialized logging.")

	return nil, &lg
}

func AddConsoleHook() error {
	log.AddHook(NewConsoleHook())
	return nil
}

func AddFileHook() error {
	logFileHook, err := NewFileHook()
	if err != nil {
		return fmt.Errorf("could not initialize logging to file %s: %v", logFileHook.GetLocation(), err)
	}
	log.AddHook(logFileHook)
	return nil
}

// ConsoleHook sends log entries to stdout/stderr.
type ConsoleHook struct {
	formatter log.Formatter
}

// NewConsoleHook creates a new log hook for writing to stdout/stderr.
func NewConsoleHook() *ConsoleHook {
	if logParams.UseJsonFormatter() {
		return &ConsoleHook{&log.JSONFormatter{CallerPrettyfier: CustomCallerPrettyfier}}
	}
	return &ConsoleHook{&log.TextFormatter{FullTimestamp: true, CallerPrettyfier: CustomCallerPrettyfier}}
}

func (hook *ConsoleHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook *ConsoleHook) checkIfTerminal(w io.Writer) bool {
	switch v := w.(type) {
	case *os.File:
		return terminal.IsTerminal(int(v.Fd()))
	default:
		return false
	}
}

func (hook *ConsoleHook) Fire(entry *log.Entry) error {
	var logWriter io.Writer
	switch entry.Level {
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.TraceLevel:
		logWriter = os.Stdout
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		logWriter = os.Stderr
	}

	if logParams.UseTextFormatter() {
		// https://github.com/sirupsen/logrus/issues/172
		if runtime.GOOS != "windows" {
			hook.formatter.(*log.TextFormatter).ForceColors = hook.checkIfTerminal(logWriter)
		}
	}

	lineBytes, err := hook.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to read entry, %v", err)
		return err
	}
	logWriter.Write(lineBytes)
	return nil
}

// FileHook sends log entries to a rotating file.
type FileHook struct {
	formatter log.Formatter
	mutex     *sync.Mutex
	logWriter io.Writer
}

func CustomCallerPrettyfier(f *runtime.Frame) (string, string) {
	s := strings.Split(f.Function, ".")
	funcname := s[len(s)-1]
	_, filename := path.Split(f.File)
	return funcname, filename
}

// NewFileHook creates a new log hook for writing to a lumberjack-rotated file.
func NewFileHook() (hook *FileHook, err error) {
	if logParams.UseJsonFormatter() {
		hook = &FileHook{&log.JSONFormatter{}, &sync.Mutex{}, nil}
	} else {
		hook = &FileHook{&log.TextFormatter{FullTimestamp: true}, &sync.Mutex{}, nil}
	}

	hook.logWriter = &lumberjack.Logger{
		Filename:   logParams.GetFile(),
		MaxSize:    logParams.GetMaxSize(),
		MaxBackups: logParams.GetMaxFiles(),
		MaxAge:     30,
		Compress:   true,
	}
	return hook, nil
}

func (hook *FileHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook *FileHook) Fire(entry *log.Entry) error {
	lineBytes, err := hook.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not read log entry. %v", err)
		return err
	}

	// Windows text files end lines with CRLF; insert '\r' ahead of any
	// trailing '\n' that doesn't already have one.
	if runtime.GOOS == "windows" {
		for i := len(lineBytes) - 1; i > 0; i-- {
			if (lineBytes[i] != '\n') || (i > 0 && lineBytes[i-1] == '\r') {
				break
			}
			lineBytes = append(lineBytes[:i], append([]byte{'\r'}, lineBytes[i:]...)...)
		}
	}

	hook.logWriter.Write(lineBytes)
	return nil
}

func (hook *FileHook) GetLocation() string {
	return logParams.GetFile()
}

// GetLevel returns the standard logger level.
func GetLevel() log.Level {
	return log.GetLevel()
}

// IsLevelEnabled checks if the log level of the standard logger is greater than the level param.
func IsLevelEnabled(level log.Level) bool {
	return log.IsLevelEnabled(level)
}

// AddHook adds a hook to the standard logger hooks.
func AddHook(hook log.Hook) {
	log.AddHook(hook)
}

// WithError creates an entry from the standard logger and adds an error to it.
func WithError(err error) *log.Entry {
	return log.WithField(log.ErrorKey, err)
}

// WithContext creates an entry from the standard logger and adds a context to it.
func WithContext(ctx context.Context) *log.Entry {
	return log.WithContext(ctx)
}

// WithField creates an entry from the standard logger and adds a field to it.
func WithField(key string, value interface{}) *log.Entry {
	return log.WithField(key, value)
}

// WithFields creates an entry from the standard logger and adds multiple fields to it.
func WithFields(fields Fields) *log.Entry {
	return log.WithFields(fields)
}

// WithTime creates an entry from the standard logger and overrides the time of logs generated with it.
func WithTime(t time.Time) *log.Entry {
	return log.WithTime(t)
}

// IsSensitive checks if the given key looks like it names a secret value.
func IsSensitive(key string) bool {
	badWords := []string{
		"x-auth-token",
		"username",
		"user",
		"password",
		"passwd",
		"secret",
		"token",
		"accesskey",
		"passphrase",
		"serialnumber",
	}
	key = strings.ToLower(key)
	for _, bad := range badWords {
		if strings.Contains(key, bad) {
			return true
		}
	}
	return false
}

// Scrubber masks an argument list if any element looks sensitive.
func Scrubber(args []string) []string {
	for _, arg := range args {
		if IsSensitive(arg) {
			return []string{"**********"}
		}
	}
	return args
}

// MapScrubber masks sensitive values in a map, keyed by key name.
func MapScrubber(m map[string]string) map[string]string {
	retMap := make(map[string]string)
	for k, v := range m {
		if IsSensitive(k) {
			retMap[k] = "**********"
		} else {
			retMap[k] = v
		}
	}
	return retMap
}

// sourced adds a source field to the logger that contains the file name and
// line where the logging happened.
func sourced() *log.Entry {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = "<???>"
		line = 1
	} else {
		slash := strings.LastIndex(file, "/")
		file = file[slash+1:]
	}
	return log.WithField("file", fmt.Sprintf("%s:%d", file, line))
}

func Trace(args ...interface{}) { sourced().Trace(args...) }
func (l *Logr) Trace(args ...interface{}) {
	l.logEntry.Trace(args...)
}

func Debug(args ...interface{}) { sourced().Debug(args...) }
func (l *Logr) Debug(args ...interface{}) {
	l.logEntry.Debug(args...)
}

func Print(args ...interface{}) { sourced().Print(args...) }
func (l *Logr) Print(args ...interface{}) {
	l.logEntry.Print(args...)
}

func Info(args ...interface{}) { sourced().Info(args...) }
func (l *Logr) Info(args ...interface{}) {
	l.logEntry.Info(args...)
}

func Warn(args ...interface{}) { sourced().Warn(args...) }
func (l *Logr) Warn(args ...interface{}) {
	l.logEntry.Warn(args...)
}

func Warning(args ...interface{}) { sourced().Warning(args...) }
func (l *Logr) Warning(args ...interface{}) {
	l.logEntry.Warning(args...)
}

func Error(args ...interface{}) { sourced().Error(args...) }
func (l *Logr) Error(args ...interface{}) {
	l.logEntry.Error(args...)
}

func Panic(args ...interface{}) { sourced().Panic(args...) }
func (l *Logr) Panic(args ...interface{}) {
	l.logEntry.Panic(args...)
}

// Fatal logs a message at level Fatal then the process exits with status 1.
func Fatal(args ...interface{}) { sourced().Fatal(args...) }
func (l *Logr) Fatal(args ...interface{}) {
	l.logEntry.Fatal(args...)
}

func Tracef(format string, args ...interface{}) { sourced().Tracef(format, args...) }
func (l *Logr) Tracef(format string, args ...interface{}) {
	l.logEntry.Tracef(format, args...)
}

func Debugf(format string, args ...interface{}) { sourced().Debugf(format, args...) }
func (l *Logr) Debugf(format string, args ...interface{}) {
	l.logEntry.Debugf(format, args...)
}

func Printf(format string, args ...interface{}) { sourced().Printf(format, args...) }
func (l *Logr) Printf(format string, args ...interface{}) {
	l.logEntry.Printf(format, args...)
}

func Infof(format string, args ...interface{}) { sourced().Infof(format, args...) }
func (l *Logr) Infof(format string, args ...interface{}) {
	l.logEntry.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) { sourced().Warnf(format, args...) }
func (l *Logr) Warnf(format string, args ...interface{}) {
	l.logEntry.Warnf(format, args...)
}

func Warningf(format string, args ...interface{}) { sourced().Warningf(format, args...) }
func (l *Logr) Warningf(format string, args ...interface{}) {
	l.logEntry.Warningf(format, args...)
}

func Errorf(format string, args ...interface{}) { sourced().Errorf(format, args...) }
func (l *Logr) Errorf(format string, args ...interface{}) {
	l.logEntry.Errorf(format, args...)
}

func Panicf(format string, args ...interface{}) { sourced().Panicf(format, args...) }
func (l *Logr) Panicf(format string, args ...interface{}) {
	l.logEntry.Panicf(format, args...)
}

// Fatalf logs a message at level Fatal then the process exits with status 1.
func Fatalf(format string, args ...interface{}) { sourced().Fatalf(format, args...) }
func (l *Logr) Fatalf(format string, args ...interface{}) {
	l.logEntry.Fatalf(format, args...)
}

func Traceln(args ...interface{}) { sourced().Traceln(args...) }
func (l *Logr) Traceln(args ...interface{}) {
	l.logEntry.Traceln(args...)
}

func Debugln(args ...interface{}) { sourced().Debugln(args...) }
func (l *Logr) Debugln(args ...interface{}) {
	l.logEntry.Debugln(args...)
}

func Println(args ...interface{}) { sourced().Println(args...) }
func (l *Logr) Println(args ...interface{}) {
	l.logEntry.Println(args...)
}

func Infoln(args ...interface{}) { sourced().Infoln(args...) }
func (l *Logr) Infoln(args ...interface{}) {
	l.logEntry.Infoln(args...)
}

func Warnln(args ...interface{}) { sourced().Warnln(args...) }
func (l *Logr) Warnln(args ...interface{}) {
	l.logEntry.Warnln(args...)
}

func Errorln(args ...interface{}) { sourced().Errorln(args...) }
func (l *Logr) Errorln(args ...interface{}) {
	l.logEntry.Errorln(args...)
}

func Fatalln(args ...interface{}) { sourced().Fatalln(args...) }
func (l *Logr) Fatalln(args ...interface{}) {
	l.logEntry.Fatalln(args...)
}
