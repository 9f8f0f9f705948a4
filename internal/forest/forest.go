// Package forest turns flat, parent-referenced element lists into ordered
// forests of trees.
//
// Elements are processed in input order. An element without parents starts a
// new tree. Any other element is attached under the first node, searching the
// existing trees in creation order and each tree in pre-order, whose name
// matches a parent name case-insensitively. Parent names are tried in the
// order the element lists them; the first name that resolves wins.
package forest

import (
	"fmt"
	"strings"

	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/tree"
)

// Item is one element to place in the forest.
type Item[T comparable] struct {
	Name    string
	Parents []string
	Value   T
}

// named lets Build resolve names of values already placed in a tree.
type named[T comparable] struct {
	names map[T]string
}

func (n named[T]) match(parent string) func(T) bool {
	return func(v T) bool { return strings.EqualFold(n.names[v], parent) }
}

// Build places every item into exactly one node. It fails with a
// model.ConfigError on duplicate names or unresolvable parents; no partial
// forest is returned.
func Build[T comparable](items []Item[T]) ([]*tree.Tree[T], error) {
	var trees []*tree.Tree[T]
	lookup := named[T]{names: make(map[T]string, len(items))}
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		key := strings.ToLower(item.Name)
		// A repeated name would make references to it ambiguous.
		if _, dup := seen[key]; dup {
			return nil, &model.ConfigError{Subject: item.Name, Err: model.ErrDuplicateName}
		}
		seen[key] = struct{}{}
		lookup.names[item.Value] = item.Name

		if len(item.Parents) == 0 {
			trees = append(trees, tree.New(item.Value))
			continue
		}

		parent := findParent(trees, lookup, item.Parents)
		if parent == nil {
			return nil, &model.ConfigError{
				Subject: item.Name,
				Err:     fmt.Errorf("%w: none of %v", model.ErrUnknownParent, item.Parents),
			}
		}
		parent.AddChild(item.Value)
	}
	return trees, nil
}

func findParent[T comparable](trees []*tree.Tree[T], lookup named[T], parents []string) *tree.Node[T] {
	for _, p := range parents {
		for _, t := range trees {
			if n := t.Find(lookup.match(p)); n != nil {
				return n
			}
		}
	}
	return nil
}
