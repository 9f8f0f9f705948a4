package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vk/jobgridgo/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Every option can also be set through a JOBGRID_ environment variable;
// flags take precedence.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("jobgridgo", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
JobGridGo - Runs job descriptors as dependency trees of shell commands.

Usage:
  jobgridgo [options] [JOB_PATH]

Arguments:
  JOB_PATH
    Path to a single .hcl/.yaml file or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	jobFlag := flagSet.String("job", getEnv("JOBGRID_JOB", ""), "Path to the job descriptor file or directory.")
	jFlag := flagSet.String("j", "", "Path to the job descriptor file or directory (shorthand).")
	packagesFlag := flagSet.String("packages", getEnv("JOBGRID_PACKAGES", ""), "Path to the YAML package catalog used by preconditions.")
	healthPortFlag := flagSet.Int("healthcheck-port", getEnvInt("JOBGRID_HEALTHCHECK_PORT", 0), "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", getEnv("JOBGRID_LOG_FORMAT", "json"), "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", getEnv("JOBGRID_LOG_LEVEL", "info"), "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", getEnvInt("JOBGRID_WORKERS", 10), "Number of steps allowed to run at once. 0 is unbounded.")
	runtimeFlag := flagSet.String("runtime", getEnv("JOBGRID_RUNTIME", "shell"), "Command runtime. Options: 'shell' or 'docker'.")
	imageFlag := flagSet.String("docker-image", getEnv("JOBGRID_DOCKER_IMAGE", ""), "Image used by the docker runtime.")
	wrapperFlag := flagSet.String("wrapper", getEnv("JOBGRID_WRAPPER", "runexec"), "Command wrapper. Options: 'runexec', 'posix' or 'raw'. With 'raw' commands must print exitcode=N themselves.")
	managerFlag := flagSet.String("package-manager", getEnv("JOBGRID_PACKAGE_MANAGER", "auto"), "Package manager for preconditions. Options: 'auto', 'apt-get', 'yum' or 'brew'.")
	graceFlag := flagSet.Duration("timeout-grace", getEnvDuration("JOBGRID_TIMEOUT_GRACE", 30*time.Second), "Extra time a command gets past its timeout before the runtime stops it.")
	notifyURLFlag := flagSet.String("notify-url", getEnv("JOBGRID_NOTIFY_URL", ""), "Socket.IO server that receives task status changes.")
	notifyNSFlag := flagSet.String("notify-namespace", getEnv("JOBGRID_NOTIFY_NAMESPACE", ""), "Socket.IO namespace for status notifications.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *jFlag != "" {
		path = *jFlag
	} else if *jobFlag != "" {
		path = *jobFlag
	}
	if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Job path determined.", "path", path)

	if path == "" {
		slog.Debug("No job path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		JobPath:         path,
		PackagesPath:    *packagesFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		WorkerCount:     *workersFlag,
		Runtime:         *runtimeFlag,
		DockerImage:     *imageFlag,
		Wrapper:         *wrapperFlag,
		PackageManager:  *managerFlag,
		TimeoutGrace:    *graceFlag,
		NotifyURL:       *notifyURLFlag,
		NotifyNamespace: *notifyNSFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("Ignoring invalid integer in environment.", "key", key, "value", v)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("Ignoring invalid duration in environment.", "key", key, "value", v)
		return fallback
	}
	return d
}
