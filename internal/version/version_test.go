package version_test

import (
	"testing"

	v "github.com/appgrove/appgrove-server/internal/version"
)

func TestGetCarriesStampedValues(t *testing.T) {
	oldVer, oldCommit := v.Version, v.Commit
	defer func() { v.Version, v.Commit = oldVer, oldCommit }()

	v.Version = "1.2.3"
	v.Commit = "abc123"

	info := v.Get()
	if info.Version != "1.2.3" {
		t.Errorf("Version = %q", info.Version)
	}
	if info.Commit != "abc123" {
		t.Errorf("Commit = %q", info.Commit)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should come from build info")
	}
}
