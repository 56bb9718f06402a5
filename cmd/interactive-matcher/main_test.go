package main

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// main запускается в дочернем процессе: код выхода иначе не проверить
func TestInvalidKindExitsWithUsageCode(t *testing.T) {
	if os.Getenv("RUN_MATCHER_MAIN") == "1" {
		os.Args = []string{"matcher", "-kind", "cian"}
		main()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestInvalidKindExitsWithUsageCode$")
	cmd.Env = append(os.Environ(), "RUN_MATCHER_MAIN=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "unexpected result: %v", err)
	assert.Equal(t, 2, exitErr.ExitCode())
	assert.Contains(t, string(out), "invalid -kind")
}
