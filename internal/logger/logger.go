package logger

import (
	"github.com/sirupsen/logrus"
)

// Log глобальный логгер. До Init пишет текстом на уровне info.
var Log = logrus.New()

// Init настраивает логгер: JSON в production, текст с полным временем при разработке.
// Неизвестный уровень заменяется на info.
func Init(level string, production bool) {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if production {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	Log = l
}

// WithRequest логгер с идентификатором заявки.
func WithRequest(requestID string) *logrus.Entry {
	return Log.WithField("request_id", requestID)
}
