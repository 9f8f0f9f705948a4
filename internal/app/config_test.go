package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	testCases := []struct {
		name       string
		cfg        Config
		wantErrMsg string
	}{
		{name: "minimal", cfg: Config{JobPath: "job.hcl", PackageManager: "apt-get"}},
		{name: "docker with image", cfg: Config{JobPath: "job.hcl", Runtime: "Docker", DockerImage: "ubuntu:24.04", PackageManager: "brew"}},
		{name: "missing job path", cfg: Config{}, wantErrMsg: "JobPath is a required"},
		{name: "negative workers", cfg: Config{JobPath: "j", WorkerCount: -1}, wantErrMsg: "invalid worker count"},
		{name: "negative grace", cfg: Config{JobPath: "j", TimeoutGrace: -time.Second}, wantErrMsg: "invalid timeout grace"},
		{name: "unknown runtime", cfg: Config{JobPath: "j", Runtime: "lxc"}, wantErrMsg: "unknown runtime"},
		{name: "docker without image", cfg: Config{JobPath: "j", Runtime: "docker"}, wantErrMsg: "DockerImage is required"},
		{name: "unknown wrapper", cfg: Config{JobPath: "j", Wrapper: "time"}, wantErrMsg: "unknown command wrapper"},
		{name: "unknown package manager", cfg: Config{JobPath: "j", PackageManager: "pkg"}, wantErrMsg: "unknown package manager"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.cfg)

			if tc.wantErrMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErrMsg)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, []string{"shell", "docker"}, cfg.Runtime)
		})
	}
}

func TestNewConfigDefaultsRuntimeToShell(t *testing.T) {
	cfg, err := NewConfig(Config{JobPath: "job.hcl", PackageManager: "yum"})

	require.NoError(t, err)
	assert.Equal(t, "shell", cfg.Runtime)
}

func TestNewLoggerLevels(t *testing.T) {
	buf := &SafeBuffer{}
	logger := newLogger("warn", "text", buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "app=jobgridgo")
}
