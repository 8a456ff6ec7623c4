package out

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	sessionout "focuskit/internal/modules/session/port/out"
	"focuskit/internal/platform/slug"
)

type Task struct {
	Ref   string `yaml:"ref"`
	Title string `yaml:"title"`
}

type tasksFile struct {
	Tasks []Task `yaml:"tasks"`
}

// YAMLTaskRegistry reads the task list from a YAML file on every lookup so
// edits are picked up without a restart. A missing file means no tasks.
type YAMLTaskRegistry struct {
	path string
}

func NewYAMLTaskRegistry(path string) sessionout.TaskRegistry {
	return &YAMLTaskRegistry{path: path}
}

func (r *YAMLTaskRegistry) TaskExists(_ context.Context, ref string) (bool, error) {
	tasks, err := r.load()
	if err != nil {
		return false, err
	}
	for _, task := range tasks {
		if slug.Equal(task.Ref, ref) {
			return true, nil
		}
	}
	return false, nil
}

func (r *YAMLTaskRegistry) load() ([]Task, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	file := tasksFile{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse tasks file: %w", err)
	}
	return file.Tasks, nil
}
