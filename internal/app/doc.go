// Package app wires the job service to its runtime, package catalog, store
// and notification relays, and drives a single job from descriptor to
// final report. Entrypoints such as the CLI only build a Config and call
// Run.
package app
