// Package classify decides the outcome of a finished command from the tokens
// its wrapper prints.
//
// The command line carries the declared limit as "walltimelimit N". The
// output carries "walltime=N", "exitcode=N" and, when the process was
// stopped, "terminationreason=X". A reported wall time above the limit is a
// timeout regardless of any exit code.
package classify

import (
	"regexp"
	"strconv"
)

// DefaultWallTimeLimit applies when the command line declares no limit.
const DefaultWallTimeLimit = 3600.0

// TimeoutExitCode is the exit code assigned to timed out commands.
const TimeoutExitCode = 9

var (
	limitPattern       = regexp.MustCompile(`walltimelimit *(\d+\.?\d*)`)
	wallTimePattern    = regexp.MustCompile(`walltime= *(\d+\.?\d*)`)
	exitCodePattern    = regexp.MustCompile(`exitcode= *(\d+\.?\d*)`)
	terminationPattern = regexp.MustCompile(`terminationreason= *([A-Za-z_]*)`)
)

// Outcome is the classification of a finished command.
type Outcome int

const (
	Success Outcome = iota
	Timeout
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "SUCCESS"
	case Timeout:
		return "TIMEOUT"
	case Failure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Verdict is the result of Classify.
type Verdict struct {
	Outcome Outcome
	// ExitCode is only meaningful when HasExitCode is set.
	ExitCode    int
	HasExitCode bool
	WallTime    float64
	Limit       float64
	// Termination is the termination reason token, if any.
	Termination string
}

// Classify applies the decision order timeout, failure, success.
func Classify(commandLine, output string) Verdict {
	v := Verdict{
		Limit:    floatToken(limitPattern, commandLine, DefaultWallTimeLimit),
		WallTime: floatToken(wallTimePattern, output, 0),
	}

	if v.WallTime > v.Limit {
		v.Outcome = Timeout
		v.ExitCode = TimeoutExitCode
		v.HasExitCode = true
		return v
	}

	code, found := token(exitCodePattern, output)
	if found {
		if n, err := strconv.Atoi(code); err == nil {
			v.ExitCode = n
			v.HasExitCode = true
		}
	}
	termination := terminationPattern.FindStringSubmatch(output)
	if termination != nil {
		v.Termination = termination[1]
	}

	if !found || code != "0" || termination != nil {
		v.Outcome = Failure
		return v
	}
	v.Outcome = Success
	return v
}

func token(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func floatToken(re *regexp.Regexp, s string, fallback float64) float64 {
	raw, ok := token(re, s)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}
