package agent

import (
	"context"
	"errors"
	"time"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrNoCredentials  = errors.New("no provider credentials for user")
	ErrInvalidRun     = errors.New("invalid agent run")
	ErrRegistryClosed = errors.New("agent registry is shut down")
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run asks for one agent run for a niche on behalf of a user.
type Run struct {
	UserID string
	Niche  string
	Email  string
}

// Job is the status record of a run.
type Job struct {
	ID         string    `json:"job_id"`
	UserID     string    `json:"-"`
	Niche      string    `json:"niche"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// Summary counts finished jobs of one user.
type Summary struct {
	TotalCompleted int `json:"total_completed"`
	TotalFailed    int `json:"total_failed"`
}

// Credentials are what the agent needs to post on the user's behalf.
type Credentials struct {
	ProviderAccessToken string
	PersonURN           string
	UpdatedAt           time.Time
}

// Starter hands runs to the agent.
type Starter interface {
	Start(ctx context.Context, run Run) (*Job, error)
}

// Runner executes a run. The agent graph itself lives outside this repository.
type Runner func(ctx context.Context, job Job, creds Credentials) error

// StartRequest is the body of POST /agent/start.
type StartRequest struct {
	Niche string `json:"niche"`
	Email string `json:"email"`
}

// StartResponse is the answer to a started run.
type StartResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}
