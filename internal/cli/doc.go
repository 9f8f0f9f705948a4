// Package cli turns command-line flags and JOBGRID_ environment variables
// into an app.Config and maps usage errors to process exit codes.
package cli
