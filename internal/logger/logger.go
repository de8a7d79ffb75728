package logger

import (
	"fmt"
	"io"
	"os"

	"btdmx/internal/config"
	"github.com/sirupsen/logrus"
)

type Log struct {
	*logrus.Entry
}

// NewLogger конструктор.
func NewLogger(cfg config.LogConf) (*Log, error) {
	return newLogger(cfg, os.Stdout)
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Log {
	log, _ := newLogger(config.LogConf{Level: "panic"}, io.Discard)
	return log
}

func newLogger(cfg config.LogConf, out io.Writer) (*Log, error) {
	log := logrus.New()

	log.SetOutput(out)

	log.Formatter = &logrus.TextFormatter{
		TimestampFormat:  "2006-01-02 15:04:05.0000",
		DisableColors:    false,
		ForceColors:      out == os.Stdout,
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger. Error in settings (level: %s): %w", cfg.Level, err)
	}
	log.SetLevel(level)
	// DMX and radio producers log from their own goroutines, keep the mutex.
	log.Debug("set level: ", level)

	return &Log{Entry: log.WithFields(nil)}, nil
}

// With will add the fields to the formatted log entry.
func (l *Log) With(fields Fields) *Log {
	return &Log{Entry: l.WithFields(logrus.Fields(fields))}
}

func (l *Log) GetLevel() string {
	return l.Logger.Level.String()
}

// IsDebug reports whether debug output is enabled, to skip hex dumps otherwise.
func (l *Log) IsDebug() bool {
	return l.Logger.IsLevelEnabled(logrus.DebugLevel)
}

// Fields are a representation of formatted log fields.
type Fields map[string]interface{}

// Logger интерфейс для регистратора.
type Logger interface {
	// GetLevel возвращает текущий установленный уровень логирования.
	GetLevel() string
	With(fields Fields) *Log
}
