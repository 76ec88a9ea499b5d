// Package scheduler runs housekeeping jobs on cron schedules
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is a unit of housekeeping work
type Job interface {
	// Name returns the unique name of the job
	Name() string
	// Run executes the job once
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string { return j.JobName }

func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

type entry struct {
	job      Job
	schedule string
}

// Manager handles the scheduling and execution of jobs
type Manager struct {
	mu      sync.Mutex
	entries []entry
	cron    *cron.Cron
}

// NewManager creates a new job manager
func NewManager() *Manager {
	// Standard five field specs, no seconds
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))

	return &Manager{cron: c}
}

// Register adds a job with its cron schedule
func (m *Manager) Register(job Job, schedule string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{job: job, schedule: schedule})
}

// Jobs returns the names of all registered jobs
func (m *Manager) Jobs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		names = append(names, e.job.Name())
	}
	return names
}

// GetJob returns a job by name
func (m *Manager) GetJob(name string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.job.Name() == name {
			return e.job, true
		}
	}
	return nil, false
}

// RunJob executes a specific job by name, outside its schedule
func (m *Manager) RunJob(ctx context.Context, name string) error {
	job, found := m.GetJob(name)
	if !found {
		return ErrJobNotFound
	}
	return job.Run(ctx)
}

// Start schedules every job and blocks until ctx is cancelled
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	entries := append([]entry(nil), m.entries...)
	m.mu.Unlock()

	for _, e := range entries {
		if e.schedule == "" {
			return fmt.Errorf("job %s has no schedule configured", e.job.Name())
		}

		job := e.job
		_, err := m.cron.AddFunc(e.schedule, func() {
			if err := job.Run(ctx); err != nil {
				log.Printf("Error running job %s: %v", job.Name(), err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
		}

		log.Printf("Scheduled job %s with schedule %s", job.Name(), e.schedule)
	}

	m.cron.Start()
	log.Println("Job scheduler started")

	<-ctx.Done()
	log.Println("Stopping job scheduler...")
	<-m.cron.Stop().Done()

	return nil
}
