// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the captured output and resource samples recorded for a
// finished task attempt.
package model

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"
)

// ErrChecksumMismatch is returned when a stored output no longer matches its
// checksum.
var ErrChecksumMismatch = errors.New("output checksum mismatch")

// TaskOutput is the captured output of one attempt. Value holds the output
// base64-encoded; Checksum is the hex SHA-256 of the raw output.
type TaskOutput struct {
	ID       string
	TaskID   string
	JobID    string
	Value    string
	Checksum string
	Time     time.Time
}

// NewTaskOutput encodes raw and computes its checksum.
func NewTaskOutput(id, jobID, taskID, raw string, at time.Time) TaskOutput {
	sum := sha256.Sum256([]byte(raw))
	return TaskOutput{
		ID:       id,
		TaskID:   taskID,
		JobID:    jobID,
		Value:    base64.StdEncoding.EncodeToString([]byte(raw)),
		Checksum: hex.EncodeToString(sum[:]),
		Time:     at,
	}
}

// Decode returns the raw output after verifying its checksum.
func (o TaskOutput) Decode() (string, error) {
	raw, err := base64.StdEncoding.DecodeString(o.Value)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != o.Checksum {
		return "", ErrChecksumMismatch
	}
	return string(raw), nil
}

// ProcessStats is one resource sample of a finished process.
type ProcessStats struct {
	Time      time.Time
	UserCPU   time.Duration
	SystemCPU time.Duration
	// MaxRSS is the peak resident set size in kilobytes, 0 if unknown.
	MaxRSS int64
}
