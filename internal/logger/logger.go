package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

var levelColors = [...]string{
	"\033[36m", // cyan
	"\033[32m", // green
	"\033[33m", // yellow
	"\033[31m", // red
	"\033[35m", // magenta
}

const reset = "\033[0m"

// Logger is a leveled, component-tagged writer. The level comes from the
// LOG_LEVEL env var (default INFO); colors are disabled with LOG_COLORS=false.
type Logger struct {
	mu        sync.Mutex
	level     Level
	out       io.Writer
	component string
	useColors bool
}

func New(component string) *Logger {
	return &Logger{
		level:     levelFromEnv(),
		out:       os.Stdout,
		component: component,
		useColors: os.Getenv("LOG_COLORS") != "false",
	}
}

func levelFromEnv() Level {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	name := levelNames[level]
	if l.useColors {
		name = levelColors[level] + fmt.Sprintf("%-5s", levelNames[level]) + reset
	} else {
		name = fmt.Sprintf("%-5s", name)
	}

	l.mu.Lock()
	fmt.Fprintf(l.out, "%s %s [%s] %s\n",
		time.Now().Format("15:04:05"), name, l.component, fmt.Sprintf(format, args...))
	l.mu.Unlock()

	if level == FATAL {
		os.Exit(1)
	}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }
func (l *Logger) Fatal(format string, args ...interface{}) { l.log(FATAL, format, args...) }
