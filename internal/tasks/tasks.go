// Package tasks derives runnable test tasks from the feature files of a
// project: one per feature and one per directory holding features.
package tasks

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	FeaturesDir      = "features"
	featureExtension = ".feature"
	taskPrefix       = "sql:"
)

type Task struct {
	Name        string
	Description string
	// Path is the feature file or directory, relative to the project root.
	Path   string
	Report string
	Dir    bool
	Line   int
}

// Target is the argument handed to the feature runner: the path, plus
// ":line" when the task is narrowed to a single scenario.
func (t Task) Target() string {
	if t.Line > 0 {
		return fmt.Sprintf("%s:%d", t.Path, t.Line)
	}
	return t.Path
}

// WithLine narrows a feature task to the scenario at line. Directory tasks
// cannot be narrowed.
func (t Task) WithLine(line int) (Task, error) {
	if t.Dir {
		return t, fmt.Errorf("task %s covers a directory and takes no scenario line", t.Name)
	}
	if line < 1 {
		return t, fmt.Errorf("invalid scenario line %d", line)
	}
	t.Line = line
	return t, nil
}

// Discover lists the tasks for every feature file under root/features,
// followed by one task per directory that directly contains features.
func Discover(fs afero.Fs, root string) ([]Task, error) {
	featuresRoot := filepath.Join(root, FeaturesDir)

	var features []string
	err := afero.Walk(fs, featuresRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(p, featureExtension) {
			rel, err := filepath.Rel(featuresRoot, p)
			if err != nil {
				return err
			}
			features = append(features, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("discover features: %w", err)
	}
	sort.Strings(features)

	out := make([]Task, 0, len(features))
	dirs := make([]string, 0)
	seen := map[string]struct{}{}
	for _, rel := range features {
		name := strings.TrimSuffix(rel, featureExtension)
		out = append(out, Task{
			Name:        taskName(name),
			Description: "Run SQL tests for feature " + name,
			Path:        path.Join(FeaturesDir, rel),
			Report:      reportName(name),
		})

		dir := path.Dir(rel)
		if dir == "." {
			continue
		}
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			dirs = append(dirs, dir)
		}
	}

	for _, dir := range dirs {
		out = append(out, Task{
			Name:        taskName(dir),
			Description: "Run SQL tests for all features in " + dir,
			Path:        path.Join(FeaturesDir, dir),
			Report:      reportName(dir),
			Dir:         true,
		})
	}
	return out, nil
}

// Find returns the task called name. A trailing "[line]" narrows a feature
// task to one scenario.
func Find(tasks []Task, name string) (Task, error) {
	line := 0
	if i := strings.IndexByte(name, '['); i >= 0 && strings.HasSuffix(name, "]") {
		if _, err := fmt.Sscanf(name[i+1:len(name)-1], "%d", &line); err != nil {
			return Task{}, fmt.Errorf("invalid scenario line in %q", name)
		}
		name = name[:i]
	}

	for _, t := range tasks {
		if t.Name != name {
			continue
		}
		if line == 0 {
			return t, nil
		}
		return t.WithLine(line)
	}
	return Task{}, fmt.Errorf("no task named %q", name)
}

func taskName(rel string) string {
	return taskPrefix + strings.ReplaceAll(rel, "/", ":")
}

func reportName(rel string) string {
	return strings.ReplaceAll(rel, "/", "_") + ".html"
}
