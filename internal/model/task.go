// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Task structure, the atomic unit of work within a job.
//
// Why parents by name?
//
// Descriptors arrive as flat lists. A task names the tasks it depends on
// instead of nesting inside them, which keeps the descriptor format simple and
// lets the forest builder decide the final shape of every tree.
package model

import (
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout applies to tasks that do not declare their own limit.
const DefaultTimeout = time.Hour

// Task is one command to run, plus the names of the tasks it must follow.
type Task struct {
	ID          string
	Name        string
	CommandLine string
	// Timeout is the declared wall-time limit. Zero means DefaultTimeout.
	Timeout time.Duration
	Files   []FileBinding
	// Parents is ordered; the first resolvable name wins.
	Parents []string
}

// EffectiveTimeout returns the declared timeout or DefaultTimeout.
func (t *Task) EffectiveTimeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

// IsRoot reports whether the task declares no parents.
func (t *Task) IsRoot() bool {
	return len(t.Parents) == 0
}

func (t *Task) String() string {
	return t.Name
}

// FileBinding exposes an input file to a task's command through the
// environment variable Name, which is set to the destination path.
type FileBinding struct {
	Name string
	Dest string
	// Source is optional. http and https sources are downloaded before the
	// task runs.
	Source string
}

// Downloadable reports whether the binding names a remote source that has
// to be fetched before the task runs.
func (f FileBinding) Downloadable() bool {
	if f.Source == "" {
		return false
	}
	u, err := url.Parse(f.Source)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}
