package cron

import "context"

// Job represents a scheduled task that runs inside the sync worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry binds a job to its schedule.
type Entry struct {
	Job       Job
	Schedule  Schedule
	AtStartup bool
}

// Registry tracks registered jobs.
type Registry struct {
	entries []Entry
}

// NewRegistry builds a registry preloaded with the provided entries.
func NewRegistry(entries ...Entry) *Registry {
	registry := &Registry{}
	for _, entry := range entries {
		registry.Register(entry)
	}
	return registry
}

// Register adds an entry; entries without a job or schedule are ignored.
func (r *Registry) Register(entry Entry) {
	if entry.Job == nil || entry.Schedule == nil {
		return
	}
	r.entries = append(r.entries, entry)
}

// Entries returns the registered entries in the order they were added.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}
