package logger

import (
	"io"
	"os"

	"flash-promo-service/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger обёртка над logrus с настройкой из конфигурации
type Logger struct {
	*logrus.Logger
}

// New создает логгер по конфигурации. Некорректный уровень заменяется на info.
func New(cfg *config.LoggerConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Warn("Failed to open log file, falling back to stdout")
		} else {
			out = io.MultiWriter(os.Stdout, file)
		}
	}
	log.SetOutput(out)

	return &Logger{Logger: log}
}

// WithJob возвращает запись с полем периодической задачи
func (l *Logger) WithJob(name string) *logrus.Entry {
	return l.WithField("job", name)
}
