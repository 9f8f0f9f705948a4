package packages

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/flow"
	"github.com/vk/jobgridgo/internal/model"
)

// InstallTimeout bounds every install step.
const InstallTimeout = time.Hour

// Installer builds the setup job run before a job's tasks.
type Installer struct {
	Repository Repository
	Manager    Manager
	Steps      flow.StepBuilder
}

// Job returns one flow per precondition, each with a single install step.
// Preconditions without packages are skipped. Packages missing from the
// repository are installed under the name the job gave them.
func (in Installer) Job(ctx context.Context, jobID string, preconditions []*model.Precondition) (*flow.Job, error) {
	logger := ctxlog.FromContext(ctx)
	job := flow.NewJob("preconditions-" + jobID)

	for i, pre := range preconditions {
		if len(pre.Packages) == 0 {
			continue
		}
		names := make([]string, 0, len(pre.Packages))
		for _, name := range pre.Packages {
			if in.Repository != nil {
				if p, ok := in.Repository.FindByName(name); ok {
					names = append(names, p.NameFor(in.Manager))
					continue
				}
			}
			logger.Warn("Package not in catalog, installing by name.", "package", name)
			names = append(names, name)
		}

		name := fmt.Sprintf("preconditions-%s-%d", jobID, i)
		f := flow.NewFlow(name)
		step := in.Steps.Build(&model.Task{
			ID:          name + "-packages",
			Name:        name + "-packages",
			CommandLine: InstallCommand(in.Manager, names),
			Timeout:     InstallTimeout,
		})
		if err := f.Add(step); err != nil {
			return nil, err
		}
		if err := job.Add(f); err != nil {
			return nil, err
		}
	}
	return job, nil
}
