package cron

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Job is one unit of scheduled listing maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type funcJob struct {
	name string
	run  func(context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.run(ctx) }

// NewJob adapts a function into a named Job.
func NewJob(name string, run func(context.Context) error) Job {
	return funcJob{name: name, run: run}
}

// Registry holds jobs in the order a cycle runs them. Names are unique.
type Registry struct {
	jobs []Job
}

// NewRegistry keeps the first job for each name and drops nil entries.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		_ = r.Register(job)
	}
	return r
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return errors.New("nil job")
	}
	if _, dup := r.Lookup(job.Name()); dup {
		return fmt.Errorf("job %q already registered", job.Name())
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Lookup finds a registered job by name.
func (r *Registry) Lookup(name string) (Job, bool) {
	i := slices.IndexFunc(r.jobs, func(j Job) bool { return j.Name() == name })
	if i < 0 {
		return nil, false
	}
	return r.jobs[i], true
}

// Jobs returns the jobs in run order. The slice is a copy.
func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}

// Names lists job names in run order, for startup logs.
func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}
