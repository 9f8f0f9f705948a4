package forest

import (
	"github.com/vk/jobgridgo/internal/model"
	"github.com/vk/jobgridgo/internal/tree"
)

// Tasks builds the task forest of a flat task list.
func Tasks(tasks []*model.Task) ([]*tree.Tree[*model.Task], error) {
	items := make([]Item[*model.Task], len(tasks))
	for i, t := range tasks {
		items[i] = Item[*model.Task]{Name: t.Name, Parents: t.Parents, Value: t}
	}
	return Build(items)
}

// BlockNode is a block together with its reduced task tree.
type BlockNode struct {
	Block *model.Block
	Tasks *tree.Tree[*model.Task]
}

func (b *BlockNode) String() string {
	return b.Block.Name
}

// Blocks reduces every block's tasks to a single task tree and then builds
// the block forest from the blocks' own parent references.
func Blocks(blocks []*model.Block) ([]*tree.Tree[*BlockNode], error) {
	items := make([]Item[*BlockNode], 0, len(blocks))
	for _, b := range blocks {
		trees, err := Tasks(b.Tasks)
		if err != nil {
			return nil, err
		}
		if len(trees) != 1 {
			return nil, &model.ConfigError{Subject: "block " + b.Name, Err: model.ErrMultipleRoots}
		}
		items = append(items, Item[*BlockNode]{
			Name:    b.Name,
			Parents: b.Parents,
			Value:   &BlockNode{Block: b, Tasks: trees[0]},
		})
	}
	return Build(items)
}
