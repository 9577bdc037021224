// Package zap adapts a *zap.Logger to cacheflow.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/cacheflow"
)

var _ cacheflow.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New names the logger "cacheflow" so engine output can be filtered.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("cacheflow")} }

func (z Logger) Debug(msg string, f cacheflow.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f cacheflow.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f cacheflow.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f cacheflow.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f cacheflow.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
