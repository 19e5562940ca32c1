package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"` // json or text
	Output   string `yaml:"output" json:"output"` // stdout, stderr, file
	Filename string `yaml:"filename" json:"filename"`
}

// DefaultConfig is used until Init is called
var DefaultConfig = Config{
	Level:  "info",
	Format: "json",
	Output: "stdout",
}

// Logger is the structured logging interface passed through the service
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// StructuredLogger wraps a logrus entry
type StructuredLogger struct {
	entry *logrus.Entry
}

// NewLogger creates a new logger from configuration
func NewLogger(config Config) Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if config.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	var output io.Writer
	switch config.Output {
	case "stderr":
		output = os.Stderr
	case "file":
		filename := config.Filename
		if filename == "" {
			filename = "logs/pulsedeck.log"
		}
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
			output = os.Stdout
		} else {
			output = &lumberjack.Logger{
				Filename:   filename,
				MaxSize:    100, // MB
				MaxAge:     30,  // days
				MaxBackups: 10,
				Compress:   true,
			}
		}
	default:
		output = os.Stdout
	}
	l.SetOutput(output)

	return &StructuredLogger{entry: logrus.NewEntry(l)}
}

func (l *StructuredLogger) Debug(msg string, fields ...interface{}) {
	l.log(logrus.DebugLevel, msg, fields...)
}

func (l *StructuredLogger) Info(msg string, fields ...interface{}) {
	l.log(logrus.InfoLevel, msg, fields...)
}

func (l *StructuredLogger) Warn(msg string, fields ...interface{}) {
	l.log(logrus.WarnLevel, msg, fields...)
}

func (l *StructuredLogger) Error(msg string, fields ...interface{}) {
	l.log(logrus.ErrorLevel, msg, fields...)
}

func (l *StructuredLogger) Fatal(msg string, fields ...interface{}) {
	l.log(logrus.FatalLevel, msg, fields...)
}

// WithField returns a logger with an additional field
func (l *StructuredLogger) WithField(key string, value interface{}) Logger {
	return &StructuredLogger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a logger with additional fields
func (l *StructuredLogger) WithFields(fields map[string]interface{}) Logger {
	return &StructuredLogger{entry: l.entry.WithFields(fields)}
}

// log handles variadic key/value field pairs
func (l *StructuredLogger) log(level logrus.Level, msg string, fields ...interface{}) {
	entry := l.entry
	if len(fields) > 0 {
		fieldMap := make(map[string]interface{})
		for i := 0; i < len(fields)-1; i += 2 {
			if key, ok := fields[i].(string); ok {
				fieldMap[key] = fields[i+1]
			}
		}
		if len(fieldMap) > 0 {
			entry = entry.WithFields(fieldMap)
		}
	}
	entry.Log(level, msg)
}

var globalLogger Logger = NewLogger(DefaultConfig)

// Init replaces the global logger
func Init(config Config) {
	globalLogger = NewLogger(config)
}

// Global returns the global logger
func Global() Logger {
	return globalLogger
}

// Debug logs at debug level on the global logger
func Debug(msg string, fields ...interface{}) { globalLogger.Debug(msg, fields...) }

// Info logs at info level on the global logger
func Info(msg string, fields ...interface{}) { globalLogger.Info(msg, fields...) }

// Warn logs at warn level on the global logger
func Warn(msg string, fields ...interface{}) { globalLogger.Warn(msg, fields...) }

// Error logs at error level on the global logger
func Error(msg string, fields ...interface{}) { globalLogger.Error(msg, fields...) }
