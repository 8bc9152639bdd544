package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tnqbao/gau-plugin-installer/entity"
)

// ErrUnknownJobType is returned by Resolve for types without a pipeline.
// Callers must not retry jobs failing with it.
var ErrUnknownJobType = errors.New("unknown job type")

// Registry maps job types to their step sequences. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	definitions map[entity.JobType][]Step
}

func NewRegistry(definitions map[entity.JobType][]Step) (*Registry, error) {
	r := &Registry{definitions: make(map[entity.JobType][]Step, len(definitions))}
	for jobType, steps := range definitions {
		if len(steps) == 0 {
			return nil, fmt.Errorf("pipeline %q has no steps", jobType)
		}
		owned := append([]Step(nil), steps...)
		seen := make(map[string]bool, len(owned))
		for i := range owned {
			if owned[i].Kind == "" {
				owned[i].Kind = inferKind(owned[i])
			}
			if err := owned[i].validate(); err != nil {
				return nil, fmt.Errorf("pipeline %q: %w", jobType, err)
			}
			if seen[owned[i].Name] {
				return nil, fmt.Errorf("pipeline %q: duplicate step name %q", jobType, owned[i].Name)
			}
			seen[owned[i].Name] = true
		}
		r.definitions[jobType] = owned
	}
	return r, nil
}

// Resolve returns a copy of the declared steps for jobType.
func (r *Registry) Resolve(jobType entity.JobType) ([]Step, error) {
	steps, ok := r.definitions[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, jobType)
	}
	return append([]Step(nil), steps...), nil
}

// ResolveFor resolves and renders the pipeline for a request.
func (r *Registry) ResolveFor(req *entity.JobRequest) ([]Step, error) {
	steps, err := r.Resolve(req.Type)
	if err != nil {
		return nil, err
	}
	return Render(steps, Vars{Name: req.Name, Type: string(req.Type)})
}

// Types lists the registered job types in sorted order.
func (r *Registry) Types() []entity.JobType {
	types := make([]entity.JobType, 0, len(r.definitions))
	for t := range r.definitions {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func inferKind(s Step) StepKind {
	switch {
	case s.Wait > 0 && s.Run == "":
		return KindWait
	default:
		return KindCommand
	}
}
