package common

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, version, build, commit string) {
	t.Helper()
	v, b, c := Version, Build, GitCommit
	Version, Build, GitCommit = version, build, commit
	t.Cleanup(func() { Version, Build, GitCommit = v, b, c })
}

func TestApplyVersionFile_FillsDefaults(t *testing.T) {
	withBuildVars(t, "dev", "unknown", "unknown")

	applyVersionFile(strings.NewReader("# release\nversion: 1.4.0\nbuild: 2026-10-01\ncommit: abc1234\nnonsense\n"))

	assert.Equal(t, "1.4.0", Version)
	assert.Equal(t, "2026-10-01", Build)
	assert.Equal(t, "abc1234", GitCommit)
}

func TestApplyVersionFile_LdflagsWin(t *testing.T) {
	withBuildVars(t, "2.0.0", "ci-17", "fff0000")

	applyVersionFile(strings.NewReader("version: 1.4.0\nbuild: local\ncommit: abc1234\n"))

	assert.Equal(t, "2.0.0", Version)
	assert.Equal(t, "ci-17", Build)
	assert.Equal(t, "fff0000", GitCommit)
}

func TestCurrentBuild(t *testing.T) {
	withBuildVars(t, "1.2.3", "b42", "deadbee")

	info := CurrentBuild()
	assert.Equal(t, BuildInfo{Version: "1.2.3", Build: "b42", Commit: "deadbee", GoVersion: runtime.Version()}, info)
	assert.Equal(t, "portwatch 1.2.3 (build b42, commit deadbee, "+runtime.Version()+")", info.String())
}

func TestShortCommit(t *testing.T) {
	assert.Equal(t, "0123456", shortCommit("0123456789abcdef"))
	assert.Equal(t, "abc", shortCommit("abc"))
}
