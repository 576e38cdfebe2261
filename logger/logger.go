// logger/logger.go
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// ANSI color codes for console output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{"[DEBUG] ", "[INFO]  ", "[WARN]  ", "[ERROR] "}
var levelColors = [...]string{colorGray, colorReset, colorYellow, colorRed}

type sink struct {
	console  io.Writer
	file     *os.File
	colored  [4]*log.Logger // console writers, one per level
	plain    [4]*log.Logger // file writers, one per level
	minLevel Level
}

var (
	std  *sink
	once sync.Once
	mu   sync.Mutex
)

func ensureInitialized() {
	once.Do(func() {
		if std == nil {
			std = &sink{console: os.Stdout, minLevel: DEBUG}
			std.setup()
		}
	})
}

// Init configures logging output. If filename is non-empty the log is also
// appended there, without color codes. If console is false only the file is
// written.
func Init(filename string, console bool) error {
	mu.Lock()
	defer mu.Unlock()

	if std != nil && std.file != nil {
		std.file.Close()
	}
	s := &sink{minLevel: DEBUG}
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		s.file = f
	}
	if console {
		s.console = os.Stdout
	}
	if s.console == nil && s.file == nil {
		return fmt.Errorf("no output destination specified")
	}
	s.setup()
	std = s
	return nil
}

// SetLevel drops messages below the given level.
func SetLevel(level Level) {
	ensureInitialized()
	mu.Lock()
	defer mu.Unlock()
	std.minLevel = level
}

// Close closes the log file if one is open.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if std != nil && std.file != nil {
		std.file.Close()
		std.file = nil
	}
}

func (s *sink) setup() {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	for lvl := DEBUG; lvl <= ERROR; lvl++ {
		if s.console != nil {
			s.colored[lvl] = log.New(s.console, levelColors[lvl]+levelNames[lvl]+colorReset, flags)
		}
		if s.file != nil {
			s.plain[lvl] = log.New(s.file, levelNames[lvl], flags)
		}
	}
}

func (s *sink) emit(lvl Level, msg string) {
	if lvl < s.minLevel {
		return
	}
	if l := s.colored[lvl]; l != nil {
		l.Output(4, msg)
	}
	if l := s.plain[lvl]; l != nil {
		l.Output(4, msg)
	}
}

func logAt(lvl Level, msg string) {
	ensureInitialized()
	std.emit(lvl, msg)
}

func Debug(v ...interface{})                 { logAt(DEBUG, fmt.Sprint(v...)) }
func Debugf(format string, v ...interface{}) { logAt(DEBUG, fmt.Sprintf(format, v...)) }
func Info(v ...interface{})                  { logAt(INFO, fmt.Sprint(v...)) }
func Infof(format string, v ...interface{})  { logAt(INFO, fmt.Sprintf(format, v...)) }
func Warn(v ...interface{})                  { logAt(WARN, fmt.Sprint(v...)) }
func Warnf(format string, v ...interface{})  { logAt(WARN, fmt.Sprintf(format, v...)) }
func Error(v ...interface{})                 { logAt(ERROR, fmt.Sprint(v...)) }
func Errorf(format string, v ...interface{}) { logAt(ERROR, fmt.Sprintf(format, v...)) }

// Fatal logs at ERROR level and exits the process.
func Fatal(v ...interface{}) {
	logAt(ERROR, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted message at ERROR level and exits the process.
func Fatalf(format string, v ...interface{}) {
	logAt(ERROR, fmt.Sprintf(format, v...))
	os.Exit(1)
}
