package flow

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vk/jobgridgo/internal/model"
)

// DefaultDownloader fetches a file into the current directory. The single
// verb receives the destination file.
const DefaultDownloader = "wget --no-cookies --no-check-certificate -O %s"

// StepBuilder projects tasks into steps.
type StepBuilder struct {
	Wrapper Wrapper
	// Downloader is a format string with one %s for the destination file.
	Downloader string
	// Home replaces a leading "~" in destination paths.
	Home string
}

// Build wraps the task's command, exposes its file bindings through the
// environment and adds one download tasklet per remote source.
func (b StepBuilder) Build(t *model.Task) *Step {
	w := b.Wrapper
	if w == nil {
		w = Runexec{}
	}
	downloader := b.Downloader
	if downloader == "" {
		downloader = DefaultDownloader
	}

	timeout := t.EffectiveTimeout()
	step := &Step{
		ID:   t.ID,
		Name: t.Name,
		Command: Command{
			ID:      t.ID,
			Line:    w.Wrap(t.ID, t.CommandLine, timeout),
			Env:     make(map[string]string, len(t.Files)),
			Timeout: timeout,
		},
	}

	for i, f := range t.Files {
		dir, dest := b.destination(f.Dest)
		step.Command.Env[f.Name] = dest
		if !f.Downloadable() {
			continue
		}
		step.Tasklets = append(step.Tasklets, Command{
			ID: fmt.Sprintf("%s-fetch-%d", t.ID, i),
			Line: fmt.Sprintf("mkdir -p %s && cd %s && %s %s && chmod +x *",
				dir, dir, fmt.Sprintf(downloader, dest), strings.TrimSpace(f.Source)),
			Timeout:    timeout,
			ExcludeEnv: true,
		})
	}
	return step
}

// destination expands the home prefix and returns the cleaned directory and
// file path of a binding.
func (b StepBuilder) destination(p string) (dir, file string) {
	if b.Home != "" && (p == "~" || strings.HasPrefix(p, "~/")) {
		p = filepath.Join(b.Home, strings.TrimPrefix(p, "~"))
	}
	dir = filepath.Clean(filepath.Dir(p))
	return dir, filepath.Join(dir, filepath.Base(p))
}
