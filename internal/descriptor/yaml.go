package descriptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vk/jobgridgo/internal/model"
	"gopkg.in/yaml.v3"
)

type yamlJob struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	User          string             `yaml:"user"`
	Preconditions []yamlPrecondition `yaml:"preconditions"`
	Tasks         []yamlTask         `yaml:"tasks"`
	Blocks        []yamlBlock        `yaml:"blocks"`
}

type yamlPrecondition struct {
	Name     string   `yaml:"name"`
	Packages []string `yaml:"packages"`
}

type yamlTask struct {
	ID      string     `yaml:"id"`
	Name    string     `yaml:"name"`
	Command string     `yaml:"command"`
	Timeout string     `yaml:"timeout"`
	Parents []string   `yaml:"parents"`
	Files   []yamlFile `yaml:"files"`
}

type yamlFile struct {
	Name   string `yaml:"name"`
	Dest   string `yaml:"dest"`
	Source string `yaml:"source"`
}

type yamlBlock struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Repeat     int        `yaml:"repeat"`
	Parents    []string   `yaml:"parents"`
	Sequential bool       `yaml:"sequential"`
	Tasks      []yamlTask `yaml:"tasks"`
}

// parseYAML decodes every document of one file as a job.
func parseYAML(path string, src []byte) ([]*model.Descriptor, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	var out []*model.Descriptor
	for {
		var j yamlJob
		err := dec.Decode(&j)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		d, err := j.translate()
		if err != nil {
			return nil, fmt.Errorf("%s: job %q: %w", path, j.Name, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (j *yamlJob) translate() (*model.Descriptor, error) {
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

func (t yamlTask) translate() (*model.Task, error) {
	if t.Command == "" {
		return nil, fmt.Errorf("task %q: command is required", t.Name)
	}
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
