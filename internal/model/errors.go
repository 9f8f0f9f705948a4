// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the configuration errors that reject a submission before
// anything is scheduled.
package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownParent = errors.New("unknown parent reference")
	// ErrDuplicateName rejects names that would make a parent reference
	// ambiguous, since parents are referenced by name.
	ErrDuplicateName = errors.New("duplicate name")
	ErrDuplicateID   = errors.New("duplicate id")
	ErrMultipleRoots = errors.New("block must reduce to exactly one task tree")
	ErrCyclic        = errors.New("cyclic block dependencies")
)

// ConfigError reports a malformed descriptor. Err is one of the sentinel
// errors above, possibly joined with others.
type ConfigError struct {
	Subject string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %v", e.Subject, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err carries a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
