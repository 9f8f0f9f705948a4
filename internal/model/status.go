// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the lifecycle statuses reported for tasks and jobs.
//
// Why an append-only status history?
//
// A task is created PENDING when the job is submitted and moves through
// RUNNING to exactly one terminal state per attempt. Tasks inside repeated
// blocks run several times, so the history is kept as a list of transitions
// and the current state of a task is simply its last entry. Tasks that never
// ran, because of a cancel or an upstream failure, stay visible as PENDING.
package model

import (
	"fmt"
	"strings"
	"time"
)

// StatusType is the lifecycle state of one task attempt.
type StatusType int

const (
	StatusPending StatusType = iota
	StatusRunning
	StatusFinished
	StatusFailed
	StatusCancelled
)

var statusNames = [...]string{"PENDING", "RUNNING", "FINISHED", "FAILED", "CANCELLED"}

func (s StatusType) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("StatusType(%d)", int(s))
	}
	return statusNames[s]
}

// Terminal reports whether no further transition follows s in one attempt.
func (s StatusType) Terminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusCancelled
}

// MarshalText renders the upper-case status name.
func (s StatusType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts a status name in any case.
func (s *StatusType) UnmarshalText(b []byte) error {
	name := strings.ToUpper(string(b))
	for i, n := range statusNames {
		if n == name {
			*s = StatusType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown task status %q", string(b))
}

// TaskStatus is one lifecycle transition of a task.
type TaskStatus struct {
	TaskID   string
	TaskName string
	JobID    string
	Type     StatusType
	// Pid is the process id of the attempt, backfilled once known.
	Pid  int
	Time time.Time
}

// JobStatus is the snapshot returned from a submission and from status
// queries: the last known status of every task of the job.
type JobStatus struct {
	ID       string
	Name     string
	Statuses []TaskStatus
}

// Job is the persisted record of a submission.
type Job struct {
	ID         string
	Name       string
	User       string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Finished reports whether the job-finished marker has been set.
func (j *Job) Finished() bool {
	return !j.FinishedAt.IsZero()
}
