//go:build unix

package runtime

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/jobgridgo/internal/flow"
)

var childPattern = regexp.MustCompile(`child=(\d+)`)

// gone reports whether pid no longer runs. A zombie left for init to reap
// counts as gone.
func gone(pid int) bool {
	if errors.Is(syscall.Kill(pid, 0), syscall.ESRCH) {
		return true
	}
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	_, rest, ok := strings.Cut(string(stat), ") ")
	return ok && strings.HasPrefix(rest, "Z")
}

func TestShellTimeoutKillsProcessGroup(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}
	sh := NewShell(0)

	_, err := sh.Run(testContext(), flow.Command{
		ID:      "group",
		Line:    "sleep 30 & echo child=$!; wait",
		Timeout: 300 * time.Millisecond,
	})

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	m := childPattern.FindStringSubmatch(te.Output)
	require.NotNil(t, m, "the shell printed its child pid")
	child, err := strconv.Atoi(m[1])
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return gone(child) }, 2*time.Second, 20*time.Millisecond, "the backgrounded child outlived the timeout")
}
