package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestCurrent(t *testing.T) {
	info := Current()
	if info.Version != Version || info.GoVersion != runtime.Version() {
		t.Errorf("Current() = %+v", info)
	}
}

func TestString(t *testing.T) {
	if s := String(); !strings.HasPrefix(s, "text2llm "+Version) {
		t.Errorf("String() = %q", s)
	}
	if Uptime() < 0 {
		t.Error("Uptime() is negative")
	}
}
