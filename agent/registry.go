package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Registry is an in-memory Starter that records jobs and the provider credentials saved at login.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	creds   map[string]Credentials
	closed  bool
	runner  Runner
	nowFunc func() time.Time
	wg      sync.WaitGroup
}

var _ Starter = (*Registry)(nil)

type RegistryOption func(*Registry)

// WithRunner executes every queued job with runner in its own goroutine.
func WithRunner(runner Runner) RegistryOption {
	return func(r *Registry) {
		r.runner = runner
	}
}

func WithNowFunc(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.nowFunc = now
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		jobs:    make(map[string]*Job),
		creds:   make(map[string]Credentials),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveCredentials stores or replaces the provider credentials of a user.
func (r *Registry) SaveCredentials(userID string, creds Credentials) error {
	if strings.TrimSpace(userID) == "" {
		return errors.Wrap(ErrInvalidRun, "Registry.SaveCredentials: empty user id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	creds.UpdatedAt = r.nowFunc()
	r.creds[userID] = creds
	log.Info().Str("user_id", userID).Msg("saved provider credentials")
	return nil
}

// Start queues a run. The user must have logged in through the broker so that the agent holds
// their provider credentials.
func (r *Registry) Start(ctx context.Context, run Run) (*Job, error) {
	if strings.TrimSpace(run.UserID) == "" || strings.TrimSpace(run.Niche) == "" {
		return nil, errors.Wrap(ErrInvalidRun, "Registry.Start: user id and niche are required")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	creds, ok := r.creds[run.UserID]
	if !ok || creds.ProviderAccessToken == "" {
		r.mu.Unlock()
		return nil, ErrNoCredentials
	}

	job := &Job{
		ID:        uuid.New().String(),
		UserID:    run.UserID,
		Niche:     strings.TrimSpace(run.Niche),
		Status:    StatusQueued,
		StartedAt: r.nowFunc(),
	}
	r.jobs[job.ID] = job
	snapshot := *job
	if r.runner != nil {
		r.wg.Add(1)
	}
	r.mu.Unlock()

	log.Info().Str("job_id", job.ID).Str("user_id", run.UserID).Str("niche", job.Niche).Msg("agent run queued")

	if r.runner != nil {
		go r.execute(context.WithoutCancel(ctx), snapshot, creds)
	}
	return &snapshot, nil
}

// Get returns a job owned by userID.
func (r *Registry) Get(userID, jobID string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// Summary counts the finished jobs of userID.
func (r *Registry) Summary(userID string) Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Summary
	for _, job := range r.jobs {
		if job.UserID != userID {
			continue
		}
		switch job.Status {
		case StatusCompleted:
			s.TotalCompleted++
		case StatusFailed:
			s.TotalFailed++
		}
	}
	return s
}

// Shutdown refuses new runs and waits for running ones until ctx expires.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "Registry.Shutdown")
	}
}

func (r *Registry) execute(ctx context.Context, job Job, creds Credentials) {
	defer r.wg.Done()

	r.setStatus(job.ID, StatusRunning, nil)
	job.Status = StatusRunning

	err := r.runner(ctx, job, creds)
	if err != nil {
		log.Err(err).Str("job_id", job.ID).Msg("agent run failed")
		r.setStatus(job.ID, StatusFailed, err)
		return
	}
	log.Info().Str("job_id", job.ID).Msg("agent run completed")
	r.setStatus(job.ID, StatusCompleted, nil)
}

func (r *Registry) setStatus(jobID string, status Status, runErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	if status == StatusCompleted || status == StatusFailed {
		job.FinishedAt = r.nowFunc()
	}
	if runErr != nil {
		job.Error = runErr.Error()
	}
}
