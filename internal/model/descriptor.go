// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Descriptor, the root container of a job submission.
//
// Why normalise?
//
// Descriptors come from files written by hand. Identifiers, names and repeat
// counts are frequently omitted, and the scheduler relies on all of them
// being present. Normalize fills the gaps in one place so that nothing
// downstream needs to care whether a value was written or derived.
package model

import (
	"strconv"
	"time"
)

// Descriptor is one job submission.
type Descriptor struct {
	ID            string
	Name          string
	User          string
	CreatedAt     time.Time
	Tasks         []*Task
	Blocks        []*Block
	Preconditions []*Precondition
}

// Normalize assigns missing identifiers with newID, stamps the creation time,
// defaults block names and repeat counts, and chains sequential blocks.
func (d *Descriptor) Normalize(newID func() string, now time.Time) {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	for _, t := range d.Tasks {
		normalizeTask(t, newID)
	}
	for _, b := range d.Blocks {
		if b.ID == "" {
			b.ID = newID()
		}
		if b.Name == "" {
			b.Name = b.ID
		}
		if b.Repeat < 1 {
			b.Repeat = 1
		}
		for _, t := range b.Tasks {
			normalizeTask(t, newID)
		}
		if b.Sequential {
			chain(b.Tasks)
		}
	}
	for i, p := range d.Preconditions {
		if p.Name == "" {
			p.Name = "precondition-" + strconv.Itoa(i)
		}
	}
}

// AllTasks returns the top-level tasks followed by every block's tasks.
func (d *Descriptor) AllTasks() []*Task {
	out := make([]*Task, 0, len(d.Tasks))
	out = append(out, d.Tasks...)
	for _, b := range d.Blocks {
		out = append(out, b.Tasks...)
	}
	return out
}

func normalizeTask(t *Task, newID func() string) {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Name == "" {
		t.Name = t.ID
	}
}

// chain makes every parentless task, except the first, depend on the task
// listed right before it.
func chain(tasks []*Task) {
	for i := 1; i < len(tasks); i++ {
		if tasks[i].IsRoot() {
			tasks[i].Parents = []string{tasks[i-1].Name}
		}
	}
}
