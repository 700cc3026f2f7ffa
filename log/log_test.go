package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func captureLogs(c *qt.C, level string) *bytes.Buffer {
	buf := new(bytes.Buffer)
	logTestWriter = buf
	Init(level, logTestWriterName, nil)
	c.Cleanup(func() {
		logTestWriter = nil
		Init(LogLevelError, "stderr", nil)
	})
	buf.Reset()
	return buf
}

func lines(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(l), &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestStructuredFields(t *testing.T) {
	c := qt.New(t)
	buf := captureLogs(c, LogLevelDebug)

	Infow("vote cast", "category", "Japan", "seq", 3)
	entries := lines(buf)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0]["message"], qt.Equals, "vote cast")
	c.Assert(entries[0]["category"], qt.Equals, "Japan")
	c.Assert(entries[0]["seq"], qt.Equals, float64(3))
	c.Assert(entries[0]["level"], qt.Equals, "info")
	c.Assert(entries[0]["caller"], qt.Matches, `log/log_test\.go:\d+`)
}

func TestLevelFilter(t *testing.T) {
	c := qt.New(t)
	buf := captureLogs(c, LogLevelWarn)
	c.Assert(Level(), qt.Equals, LogLevelWarn)

	Debugw("hidden")
	Infof("hidden %d", 1)
	Errorw(errors.New("boom"), "visible")
	entries := lines(buf)
	c.Assert(entries, qt.HasLen, 1)
	c.Assert(entries[0]["error"], qt.Equals, "boom")
}

func TestValidLevel(t *testing.T) {
	c := qt.New(t)
	c.Assert(ValidLevel("debug"), qt.IsTrue)
	c.Assert(ValidLevel("trace"), qt.IsFalse)
}
