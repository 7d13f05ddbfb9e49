package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GitCommit == "" || info.BuildDate == "" {
		t.Errorf("commit and date must never be blank: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("Platform = %q", info.Platform)
	}
}

func TestLdflagsWin(t *testing.T) {
	prevVersion, prevCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = prevVersion, prevCommit })

	Version, GitCommit = "1.4.0", "abc1234"
	if IsDev() {
		t.Error("release build reported as dev")
	}
	if got := Get().GitCommit; got != "abc1234" {
		t.Errorf("GitCommit = %q, want ldflags value", got)
	}

	Version = "dev"
	if !IsDev() {
		t.Error("dev build not reported as dev")
	}
}
