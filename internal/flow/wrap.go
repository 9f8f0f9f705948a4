package flow

import (
	"fmt"
	"strings"
	"time"
)

// Wrapper turns a task's command line into the line actually run, so that
// the captured output carries the walltime and exitcode tokens the
// classifier reads.
type Wrapper interface {
	Wrap(id, commandLine string, timeout time.Duration) string
}

// Runexec wraps commands with the runexec benchmarking tool, which enforces
// the wall-time limit and writes its measurements to a per-task log file.
type Runexec struct{}

func (Runexec) Wrap(id, commandLine string, timeout time.Duration) string {
	return fmt.Sprintf("runexec --output %[1]s.log --walltimelimit %[2]d -- %[3]s; cat %[1]s.log;  rm -f %[1]s.log",
		id, seconds(timeout), commandLine)
}

// Posix wraps commands with plain shell timing for hosts without runexec.
// The declared limit is kept in a no-op so the classifier can recover it.
type Posix struct{}

func (Posix) Wrap(_, commandLine string, timeout time.Duration) string {
	return fmt.Sprintf(`: walltimelimit %d; __jg_start=$(date +%%s); ( %s ); __jg_rc=$?; __jg_end=$(date +%%s); `+
		`echo "walltime=$((__jg_end-__jg_start))"; echo "exitcode=$__jg_rc"`,
		seconds(timeout), commandLine)
}

// Raw runs the command line untouched. The command must print the
// "exitcode=N" token itself, otherwise every run classifies as a failure.
type Raw struct{}

func (Raw) Wrap(_, commandLine string, _ time.Duration) string {
	return commandLine
}

// WrapperByName resolves the wrapper names accepted on the command line.
func WrapperByName(name string) (Wrapper, error) {
	switch strings.ToLower(name) {
	case "", "runexec":
		return Runexec{}, nil
	case "posix":
		return Posix{}, nil
	case "raw":
		return Raw{}, nil
	default:
		return nil, fmt.Errorf("unknown command wrapper %q: must be 'runexec', 'posix' or 'raw'", name)
	}
}

// seconds rounds d up to whole seconds, the unit the wall-time limit is
// declared in. Any positive timeout yields at least one second.
func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
