package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestInfoString(t *testing.T) {
	s := Info{Commit: "abc123", Modified: true, BuildDate: "today", GoVersion: "go1.24", Platform: "linux/amd64"}.String()
	assert.True(t, strings.Contains(s, "abc123 (modified)"))
	assert.Contains(t, s, "linux/amd64")
}
