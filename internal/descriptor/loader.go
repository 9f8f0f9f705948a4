// Package descriptor loads job descriptors from HCL or YAML files.
//
// A path may name a file or a directory; directories are searched
// recursively for .hcl, .yaml and .yml files. Across all files exactly one
// job must be declared.
//
// HCL descriptors can read the process environment through env.NAME:
//
//	job "nightly" {
//	  user = env.USER
//
//	  task "fetch" {
//	    command = "fetch-data --out $DATA"
//	    timeout = "30m"
//	    file "DATA" {
//	      dest   = "~/data/input.csv"
//	      source = "https://example.com/input.csv"
//	    }
//	  }
//
//	  block "train" {
//	    repeat = 3
//	    task "fit" {
//	      command = "train.sh"
//	    }
//	  }
//	}
package descriptor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/jobgridgo/internal/ctxlog"
	"github.com/vk/jobgridgo/internal/fsutil"
	"github.com/vk/jobgridgo/internal/model"
)

// ErrNoJob is returned when no file declares a job.
var ErrNoJob = errors.New("no job declared")

var extensions = []string{".hcl", ".yaml", ".yml"}

// Load reads every descriptor file under paths and returns the single job
// they declare.
func Load(ctx context.Context, paths ...string) (*model.Descriptor, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered descriptor files.", "count", len(files))

	parser := hclparse.NewParser()
	var jobs []*model.Descriptor
	var sources []string
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		var found []*model.Descriptor
		if filepath.Ext(file) == ".hcl" {
			found, err = parseHCL(parser, file, src)
		} else {
			found, err = parseYAML(file, src)
		}
		if err != nil {
			return nil, err
		}
		for range found {
			sources = append(sources, file)
		}
		jobs = append(jobs, found...)
	}

	switch len(jobs) {
	case 0:
		return nil, fmt.Errorf("%w in %s", ErrNoJob, strings.Join(paths, ", "))
	case 1:
		logger.Info("Job descriptor loaded.", "job", jobs[0].Name, "file", sources[0],
			"tasks", len(jobs[0].Tasks), "blocks", len(jobs[0].Blocks))
		return jobs[0], nil
	default:
		return nil, fmt.Errorf("expected exactly one job, found %d (in %s)", len(jobs), strings.Join(sources, ", "))
	}
}

// findFiles expands directories into the descriptor files they contain.
// Paths that do not exist are an error.
func findFiles(paths []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !info.IsDir() {
			if !supported(path) {
				return nil, fmt.Errorf("unsupported descriptor file %s: expected one of %s", path, strings.Join(extensions, ", "))
			}
			add(path)
			continue
		}
		found, err := fsutil.FindFilesByExtension(path, extensions...)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}

func supported(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
