// Package logger provides leveled logging for the service.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelTags = map[Level]string{
	DebugLevel: "[DEBUG] ",
	InfoLevel:  "[INFO] ",
	WarnLevel:  "[WARN] ",
	ErrorLevel: "[ERROR] ",
}

// Logger writes leveled messages to a stdlib logger.
type Logger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger *Logger

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Init initializes the default logger with the given level and format.
// Format "text" includes caller file:line, anything else stays plain.
func Init(level string, format string) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}

	defaultLogger = &Logger{
		level:  ParseLevel(level),
		logger: log.New(os.Stderr, "", flags),
	}
}

func output(l Level, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > l {
		return
	}
	msg := fmt.Sprintf(levelTags[l]+format, args...)
	_ = defaultLogger.logger.Output(3, msg)
}

func Debug(format string, args ...interface{}) {
	output(DebugLevel, format, args...)
}

func Info(format string, args ...interface{}) {
	output(InfoLevel, format, args...)
}

func Warn(format string, args ...interface{}) {
	output(WarnLevel, format, args...)
}

func Error(format string, args ...interface{}) {
	output(ErrorLevel, format, args...)
}

// Fatal logs the message and exits. Usable before Init for startup failures.
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(2, msg)
	} else {
		log.Print(msg)
	}
	os.Exit(1)
}
