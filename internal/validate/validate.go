// Package validate checks block graphs before anything is scheduled.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/jobgridgo/internal/model"
)

// Result collects everything wrong with a set of blocks.
type Result struct {
	Cyclic bool
	Errors []error
}

// Valid reports whether the blocks may be scheduled.
func (r *Result) Valid() bool {
	return !r.Cyclic && len(r.Errors) == 0
}

// Err returns nil for a valid result, otherwise a model.ConfigError joining
// every problem found.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	errs := append([]error(nil), r.Errors...)
	if r.Cyclic {
		errs = append(errs, model.ErrCyclic)
	}
	return &model.ConfigError{Subject: "blocks", Err: errors.Join(errs...)}
}

type validator struct {
	byName     map[string]*model.Block
	inProgress map[*model.Block]bool
	done       map[*model.Block]bool
	result     *Result
}

// Blocks flags duplicate block ids, parent names that resolve to no block,
// and cycles among parent references. Names resolve case-insensitively.
func Blocks(blocks []*model.Block) *Result {
	v := &validator{
		byName:     make(map[string]*model.Block, len(blocks)),
		inProgress: make(map[*model.Block]bool),
		done:       make(map[*model.Block]bool),
		result:     &Result{},
	}
	for _, b := range blocks {
		key := strings.ToLower(b.Name)
		if _, ok := v.byName[key]; !ok {
			v.byName[key] = b
		}
	}

	ids := make(map[string]struct{}, len(blocks))
	for _, b := range blocks {
		if _, dup := ids[b.ID]; dup {
			v.result.Errors = append(v.result.Errors, fmt.Errorf("%w: block id %s", model.ErrDuplicateID, b.ID))
		} else {
			ids[b.ID] = struct{}{}
		}
		v.visit(b)
	}
	return v.result
}

// visit descends through b's parents. Meeting a block that is still in
// progress on the current path means the graph has a cycle; that path is
// not followed further.
func (v *validator) visit(b *model.Block) {
	if v.inProgress[b] {
		v.result.Cyclic = true
		return
	}
	if v.done[b] {
		return
	}

	v.inProgress[b] = true
	defer func() {
		delete(v.inProgress, b)
		v.done[b] = true
	}()

	for _, p := range b.Parents {
		parent, ok := v.byName[strings.ToLower(p)]
		if !ok {
			v.result.Errors = append(v.result.Errors,
				fmt.Errorf("%w: unknown parent %s of block %s", model.ErrUnknownParent, p, b.ID))
			continue
		}
		v.visit(parent)
	}
}

// TaskIDs flags task ids used more than once. Ids are unique across the
// loose tasks and the tasks of every block.
func TaskIDs(tasks []*model.Task) error {
	seen := make(map[string]struct{}, len(tasks))
	var errs []error
	for _, t := range tasks {
		if _, dup := seen[t.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: task id %s", model.ErrDuplicateID, t.ID))
			continue
		}
		seen[t.ID] = struct{}{}
	}
	if len(errs) == 0 {
		return nil
	}
	return &model.ConfigError{Subject: "tasks", Err: errors.Join(errs...)}
}
