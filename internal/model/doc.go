// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model provides the value types describing a submitted job: the
// tasks to run, the blocks that group and repeat them, the preconditions
// that must be installed first, and the statuses reported while they run.
//
// # Core Concepts
//
// The model is built around a few key structures:
//
//   - Descriptor: The root container for one submission. It aggregates the
//     tasks, blocks and preconditions of a single job.
//
//   - Task: The smallest schedulable unit of work. It maps to one external
//     command invocation and names the tasks it depends on by name.
//
//   - Block: A named, repeatable wrapper around one tree of tasks. Blocks
//     depend on other blocks, again by name.
//
//   - TaskStatus: A timestamped lifecycle transition of one task.
//
// Every type here is plain data. Nothing in this package schedules, runs or
// stores anything.
package model
