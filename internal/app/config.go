package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/packages"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	JobPath      string // descriptor file or directory
	PackagesPath string // package catalog (YAML), optional

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	// WorkerCount bounds the steps running at once; 0 means unbounded.
	WorkerCount int

	Runtime        string // shell or docker
	DockerImage    string
	Wrapper        string // runexec, posix or raw
	PackageManager string // auto, apt-get, yum or brew
	TimeoutGrace   time.Duration

	NotifyURL       string
	NotifyNamespace string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.JobPath == "" {
		return nil, errors.New("JobPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("invalid worker count %d: must not be negative", cfg.WorkerCount)
	}
	if cfg.TimeoutGrace < 0 {
		return nil, fmt.Errorf("invalid timeout grace %s: must not be negative", cfg.TimeoutGrace)
	}

	cfg.Runtime = strings.ToLower(cfg.Runtime)
	switch cfg.Runtime {
	case "":
		cfg.Runtime = "shell"
	case "shell":
	case "docker":
		if cfg.DockerImage == "" {
			return nil, errors.New("DockerImage is required when the docker runtime is selected")
		}
	default:
		return nil, fmt.Errorf("unknown runtime %q: must be 'shell' or 'docker'", cfg.Runtime)
	}

	if _, err := flow.WrapperByName(cfg.Wrapper); err != nil {
		return nil, err
	}
	if _, err := packages.ManagerByName(cfg.PackageManager); err != nil {
		return nil, err
	}

	return &cfg, nil
}
