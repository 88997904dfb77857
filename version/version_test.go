package version_test

import (
	"strings"
	"testing"

	"github.com/kbukum/prockit/version"
)

func TestGetVersionInfo(t *testing.T) {
	info := version.GetVersionInfo()
	if info.Version == "" {
		t.Fatal("version must never be empty")
	}
}

func TestGetShortVersion(t *testing.T) {
	short := version.GetShortVersion()
	if short == "" {
		t.Fatal("short version must never be empty")
	}
	if !strings.HasPrefix(short, version.Version) {
		t.Fatalf("short version %q must start with %q", short, version.Version)
	}
}
