package logging

import (
	"time"

	"github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logrus.WithField("component", "gorm").Warnf(format, args...)
}

// GormLogger reports gorm warnings, errors and statements slower than
// slowThreshold through logrus.
func GormLogger(slowThreshold time.Duration) gormlogger.Interface {
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
