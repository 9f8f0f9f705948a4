// Package launcher walks task trees, block trees and jobs, running
// independent branches concurrently while keeping the ordering each
// structure demands.
//
// Tree children run concurrently with each other, and only after their
// parent succeeded; a failed node ends its branch. Block repeats run one
// after the other. Flows of a job run concurrently.
//
// Every branch is a goroutine spawned and awaited by its parent branch. The
// number of steps executing at once is bounded by a weighted semaphore; the
// goroutines waiting for a slot hold no other resource.
package launcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/dispatch"
	"github.com/vk/jobgridgo/internal/executor"
	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/tree"
)

var errBranchFailed = errors.New("branch failed")

// Report summarises what a launcher ran.
type Report struct {
	Executed int64
	Failed   int64
}

// Launcher schedules work for one job.
type Launcher struct {
	ctx        context.Context
	cancel     context.CancelFunc
	steps      *executor.Steps
	dispatcher *dispatch.Dispatcher
	slots      *semaphore.Weighted

	wg sync.WaitGroup

	mu    sync.Mutex
	flows []*executor.Flow

	executed atomic.Int64
	failed   atomic.Int64
}

// New creates a launcher. workers bounds the number of steps executing at
// once; zero or less means no bound.
func New(ctx context.Context, steps *executor.Steps, d *dispatch.Dispatcher, workers int) *Launcher {
	ctx, cancel := context.WithCancel(ctx)
	l := &Launcher{ctx: ctx, cancel: cancel, steps: steps, dispatcher: d}
	if workers > 0 {
		l.slots = semaphore.NewWeighted(int64(workers))
	}
	return l
}

// SubmitTrees starts walking each tree from its root.
func (l *Launcher) SubmitTrees(trees []*tree.Tree[*flow.Step]) {
	for _, t := range trees {
		l.spawn(func() { l.walk(t.Root()) })
	}
}

// SubmitBlocks starts walking each block tree from its root block.
func (l *Launcher) SubmitBlocks(trees []*tree.Tree[*flow.Block]) {
	for _, t := range trees {
		l.spawn(func() { l.walkBlock(t.Root()) })
	}
}

// RunJob runs every flow of job concurrently. The returned channel receives
// the job execution once all flows have finished, after JobCompleted has
// been posted.
func (l *Launcher) RunJob(job *flow.Job) <-chan *flow.JobExecution {
	out := make(chan *flow.JobExecution, 1)
	l.spawn(func() {
		defer close(out)
		logger := ctxlog.FromContext(l.ctx).With("job", job.Name)
		logger.Info("🚀 Starting job", "flows", len(job.Flows()))
		start := time.Now()

		flows := job.Flows()
		results := make([]*flow.FlowExecutionResult, len(flows))
		var g errgroup.Group
		for i, f := range flows {
			fe := executor.NewFlow(f, l.steps, l.dispatcher)
			l.track(fe)
			g.Go(func() error {
				results[i] = fe.Execute(l.ctx)
				for _, r := range results[i].Results() {
					if r.Cancelled {
						continue
					}
					l.executed.Add(1)
					if !r.Successful() {
						l.failed.Add(1)
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		execution := &flow.JobExecution{Job: job, Elapsed: time.Since(start), Flows: results}
		if err := l.dispatcher.Post(dispatch.JobCompleted{JobID: l.steps.JobID(), Execution: execution}); err != nil {
			logger.Error("Failed to post event.", "event", dispatch.KindJobCompleted.String(), "error", err)
		}
		logger.Info("🏁 Job finished", "elapsed", execution.Elapsed, "successful", execution.Successful())
		out <- execution
	})
	return out
}

// Cancel stops scheduling. Nothing new starts after it returns and running
// flows stop before their next step. Commands already running are not
// interrupted and their processes may outlive the launcher.
func (l *Launcher) Cancel() {
	ctxlog.FromContext(l.ctx).Warn("🛑 Launcher cancelled.")
	l.cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, fe := range l.flows {
		fe.Cancel()
	}
}

// Wait blocks until everything submitted so far has finished.
func (l *Launcher) Wait() Report {
	l.wg.Wait()
	return Report{Executed: l.executed.Load(), Failed: l.failed.Load()}
}

func (l *Launcher) spawn(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

func (l *Launcher) track(fe *executor.Flow) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx.Err() != nil {
		fe.Cancel()
	}
	l.flows = append(l.flows, fe)
}

// walk runs n and, if it succeeded, all of its children concurrently. It
// reports whether every node it reached succeeded.
func (l *Launcher) walk(n *tree.Node[*flow.Step]) bool {
	res, ran := l.run(n.Value())
	if !ran || !res.Successful() {
		return false
	}
	return awaitChildren(n.Children(), l.walk)
}

// walkBlock repeats the block's step tree, then descends into child blocks
// when the last iteration succeeded throughout.
func (l *Launcher) walkBlock(n *tree.Node[*flow.Block]) bool {
	b := n.Value()
	logger := ctxlog.FromContext(l.ctx).With("block", b.Name, "block_id", b.ID)

	ok := false
	for i := 0; i < max(1, b.Repeat); i++ {
		if l.ctx.Err() != nil {
			logger.Info("Block not continued, launcher cancelled.", "iteration", i+1)
			return false
		}
		logger.Info("🔁 Starting block iteration", "iteration", i+1, "of", max(1, b.Repeat))
		ok = l.walk(b.Steps.Root())
	}
	if !ok {
		logger.Warn("Block did not succeed, dependent blocks will not run.")
		return false
	}
	return awaitChildren(n.Children(), l.walkBlock)
}

// awaitChildren walks every child concurrently and waits for all of them.
func awaitChildren[T comparable](children []*tree.Node[T], walk func(*tree.Node[T]) bool) bool {
	if len(children) == 0 {
		return true
	}
	var g errgroup.Group
	for _, c := range children {
		g.Go(func() error {
			if !walk(c) {
				return errBranchFailed
			}
			return nil
		})
	}
	return g.Wait() == nil
}

// run executes one step in a slot. It returns false when the launcher was
// cancelled before the step could start.
func (l *Launcher) run(step *flow.Step) (*flow.StepExecutionResult, bool) {
	if l.ctx.Err() != nil {
		return nil, false
	}
	if l.slots != nil {
		if err := l.slots.Acquire(l.ctx, 1); err != nil {
			return nil, false
		}
		defer l.slots.Release(1)
		if l.ctx.Err() != nil {
			return nil, false
		}
	}

	res := l.steps.Execute(l.ctx, step)
	l.executed.Add(1)
	if !res.Successful() {
		l.failed.Add(1)
	}
	return res, true
}
