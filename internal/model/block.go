// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Block structure, a repeatable group of tasks.
package model

// Block wraps tasks that must reduce to exactly one task tree. The tree is
// walked Repeat times, one iteration after the other.
type Block struct {
	ID      string
	Name    string
	Repeat  int
	Tasks   []*Task
	Parents []string
	// Sequential chains every parentless task after the task listed before
	// it, turning a flat list into a single chain.
	Sequential bool
}

// Iterations returns Repeat, clamped to at least one.
func (b *Block) Iterations() int {
	if b.Repeat < 1 {
		return 1
	}
	return b.Repeat
}

func (b *Block) String() string {
	return b.Name
}

// Precondition lists packages that must be installed on the host before any
// task of the job runs.
type Precondition struct {
	Name     string
	Packages []string
}
