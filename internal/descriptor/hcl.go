package descriptor

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/jobgridgo/internal/model"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// hclRoot is used to decode the top-level blocks of any file.
type hclRoot struct {
	Jobs []*hclJob `hcl:"job,block"`
}

type hclJob struct {
	Name          string             `hcl:"name,label"`
	ID            string             `hcl:"id,optional"`
	User          string             `hcl:"user,optional"`
	Preconditions []*hclPrecondition `hcl:"precondition,block"`
	Tasks         []*hclTask         `hcl:"task,block"`
	Blocks        []*hclBlock        `hcl:"block,block"`
}

type hclPrecondition struct {
	Name     string   `hcl:"name,label"`
	Packages []string `hcl:"packages"`
}

type hclTask struct {
	Name    string     `hcl:"name,label"`
	ID      string     `hcl:"id,optional"`
	Command string     `hcl:"command"`
	Timeout string     `hcl:"timeout,optional"`
	Parents []string   `hcl:"parents,optional"`
	Files   []*hclFile `hcl:"file,block"`
}

type hclFile struct {
	Name   string `hcl:"name,label"`
	Dest   string `hcl:"dest"`
	Source string `hcl:"source,optional"`
}

type hclBlock struct {
	Name       string     `hcl:"name,label"`
	ID         string     `hcl:"id,optional"`
	Repeat     int        `hcl:"repeat,optional"`
	Parents    []string   `hcl:"parents,optional"`
	Sequential bool       `hcl:"sequential,optional"`
	Tasks      []*hclTask `hcl:"task,block"`
}

// evalContext exposes the process environment as env.NAME.
func evalContext() (*hcl.EvalContext, error) {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = v
		}
	}
	env, err := gocty.ToCtyValue(vars, cty.Map(cty.String))
	if err != nil {
		return nil, fmt.Errorf("exposing environment: %w", err)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": env},
	}, nil
}

// parseHCL decodes every job block of one file.
func parseHCL(parser *hclparse.Parser, path string, src []byte) ([]*model.Descriptor, error) {
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	evalCtx, err := evalContext()
	if err != nil {
		return nil, err
	}
	var root hclRoot
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	out := make([]*model.Descriptor, 0, len(root.Jobs))
	for _, j := range root.Jobs {
		d, err := j.translate()
		if err != nil {
			return nil, fmt.Errorf("%s: job %q: %w", path, j.Name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (j *hclJob) translate() (*model.Descriptor, error) {
	d := &model.Descriptor{ID: j.ID, Name: j.Name, User: j.User}
	for _, p := range j.Preconditions {
		d.Preconditions = append(d.Preconditions, &model.Precondition{Name: p.Name, Packages: p.Packages})
	}
	for _, t := range j.Tasks {
		task, err := t.translate()
		if err != nil {
			return nil, err
		}
		d.Tasks = append(d.Tasks, task)
	}
	for _, b := range j.Blocks {
		block := &model.Block{ID: b.ID, Name: b.Name, Repeat: b.Repeat, Parents: b.Parents, Sequential: b.Sequential}
		for _, t := range b.Tasks {
			task, err := t.translate()
			if err != nil {
				return nil, fmt.Errorf("block %q: %w", b.Name, err)
			}
			block.Tasks = append(block.Tasks, task)
		}
		d.Blocks = append(d.Blocks, block)
	}
	return d, nil
}

func (t *hclTask) translate() (*model.Task, error) {
	timeout, err := parseTimeout(t.Timeout)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", t.Name, err)
	}
	task := &model.Task{ID: t.ID, Name: t.Name, CommandLine: t.Command, Timeout: timeout, Parents: t.Parents}
	for _, f := range t.Files {
		task.Files = append(task.Files, model.FileBinding{Name: f.Name, Dest: f.Dest, Source: f.Source})
	}
	return task, nil
}

// parseTimeout accepts Go durations ("90s", "1h30m") and bare seconds.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		if d, err2 := time.ParseDuration(s + "s"); err2 == nil {
			return validTimeout(d, s)
		}
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	return validTimeout(d, s)
}

func validTimeout(d time.Duration, s string) (time.Duration, error) {
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", s)
	}
	return d, nil
}
