// Package logrus adapts a *logrus.Entry to cacheflow.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/cacheflow"
)

var _ cacheflow.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

func New(l *logrus.Logger) Logger {
	return Logger{E: logrus.NewEntry(l).WithField("component", "cacheflow")}
}

func (l Logger) Debug(msg string, f cacheflow.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f cacheflow.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f cacheflow.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f cacheflow.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f cacheflow.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	e := l.E.WithFields(logrus.Fields(f))
	if err, ok := f["err"].(error); ok {
		e = e.WithError(err)
	}
	return e
}
