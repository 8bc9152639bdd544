package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

type StepKind string

const (
	KindCommand StepKind = "command"
	KindWait    StepKind = "wait"
	KindSyncUI  StepKind = "sync_ui"
)

// Step is one unit of pipeline work. Label and Run are templates until the
// step has been rendered for a job.
type Step struct {
	Name    string        `yaml:"name" json:"name"`
	Label   string        `yaml:"label,omitempty" json:"label,omitempty"`
	Kind    StepKind      `yaml:"kind,omitempty" json:"kind"`
	Run     string        `yaml:"run,omitempty" json:"run,omitempty"`
	Wait    time.Duration `yaml:"wait,omitempty" json:"wait,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Vars are the values available to step templates.
type Vars struct {
	Name string
	Type string
}

// DisplayName is the label when there is one, otherwise the step name.
func (s Step) DisplayName() string {
	if s.Label != "" {
		return strings.TrimSpace(s.Label)
	}
	return s.Name
}

func (s Step) validate() error {
	if s.Name == "" {
		return fmt.Errorf("step name is required")
	}
	switch s.Kind {
	case KindCommand:
		if strings.TrimSpace(s.Run) == "" {
			return fmt.Errorf("step %q: run is required for command steps", s.Name)
		}
	case KindWait:
		if s.Wait <= 0 {
			return fmt.Errorf("step %q: wait must be positive", s.Name)
		}
	case KindSyncUI:
	default:
		return fmt.Errorf("step %q: unknown kind %q", s.Name, s.Kind)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("step %q: timeout must not be negative", s.Name)
	}
	return nil
}

// Render expands the label and run templates of every step. The input slice
// is not modified.
func Render(steps []Step, vars Vars) ([]Step, error) {
	rendered := make([]Step, len(steps))
	for i, step := range steps {
		label, err := renderTemplate(step.Name+".label", step.Label, vars)
		if err != nil {
			return nil, err
		}
		run, err := renderTemplate(step.Name+".run", step.Run, vars)
		if err != nil {
			return nil, err
		}
		step.Label = label
		step.Run = run
		rendered[i] = step
	}
	return rendered, nil
}

func renderTemplate(name, text string, vars Vars) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
