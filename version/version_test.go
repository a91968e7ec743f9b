package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	i := Info{CommitHash: "0123456789abcdef", BuildTime: "2026-01-02", Version: "v0.3.0", GoVersion: "go1.24.6", Platform: "linux/amd64"}
	assert.Equal(t, "0123456", i.Short())
	assert.Equal(t, "factgate v0.3.0 (commit 0123456, built 2026-01-02, go1.24.6 linux/amd64)", i.String())

	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
	assert.Equal(t, runtime.Version(), Get().GoVersion)
}
