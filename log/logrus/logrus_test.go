package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/cacheflow"
)

func TestLevelsAndFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Debug("d", nil)
	l.Warn("w", cacheflow.Fields{"ns": "users", "err": errors.New("boom")})

	if len(hook.Entries) != 2 {
		t.Fatalf("got %d entries", len(hook.Entries))
	}
	if hook.Entries[0].Level != logrus.DebugLevel {
		t.Fatalf("level = %s", hook.Entries[0].Level)
	}
	last := hook.LastEntry()
	if last.Level != logrus.WarnLevel || last.Message != "w" {
		t.Fatalf("last = %s %q", last.Level, last.Message)
	}
	if last.Data["component"] != "cacheflow" || last.Data["ns"] != "users" {
		t.Fatalf("data = %v", last.Data)
	}
	if err, _ := last.Data[logrus.ErrorKey].(error); err == nil || err.Error() != "boom" {
		t.Fatalf("error field = %v", last.Data[logrus.ErrorKey])
	}
}
