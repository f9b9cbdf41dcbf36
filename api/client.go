package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/postsync/agent"
	apperrors "github.com/jrsteele09/postsync/internal/errors"
	"github.com/jrsteele09/postsync/sessions"
)

const (
	MePath           = "/api/me"
	LogoutPath       = "/auth/logout"
	AgentStartPath   = "/agent/start"
	AgentJobsPath    = "/agent/jobs/"
	AgentSummaryPath = "/agent/summary"

	DefaultStartMessage     = "Agent started successfully!"
	DefaultStartFailMessage = "Failed to start agent"
	MissingEmailMessage     = "User email not found"

	maxBodyBytes = 1 << 20
)

// SessionReader exposes the current session; authsession.Context satisfies it.
type SessionReader interface {
	Session() (sessions.Session, bool)
}

// Client calls the protected backend endpoints. Its transport is expected to attach the session
// credential and handle 401, see interceptor.Transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    SessionReader
}

func NewClient(baseURL string, transport http.RoundTripper, session SessionReader) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: transport},
		session:    session,
	}
}

// MeResponse is the body of GET /api/me.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// StartAgent asks the backend to run the agent for niche. The email of the logged in user is
// sent along and must be known locally; otherwise nothing is sent.
func (c *Client) StartAgent(ctx context.Context, niche string) (*agent.StartResponse, error) {
	s, ok := c.session.Session()
	if !ok || !s.HasEmail() {
		return nil, apperrors.NewMissingCredential(MissingEmailMessage)
	}

	var resp agent.StartResponse
	err := c.do(ctx, http.MethodPost, AgentStartPath, agent.StartRequest{Niche: niche, Email: s.Email}, &resp)
	if err != nil {
		var apiErr *apperrors.APIError
		if apperrors.As(err, &apiErr) && apiErr.Detail == "" {
			apiErr.Detail = DefaultStartFailMessage
		}
		return nil, apperrors.Wrapf(err, "start agent")
	}
	if resp.Message == "" {
		resp.Message = DefaultStartMessage
	}
	return &resp, nil
}

func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var resp MeResponse
	if err := c.do(ctx, http.MethodGet, MePath, nil, &resp); err != nil {
		return nil, apperrors.Wrapf(err, "get current user")
	}
	return &resp, nil
}

// Job reads the status of an agent run.
func (c *Client) Job(ctx context.Context, jobID string) (*agent.Job, error) {
	var job agent.Job
	if err := c.do(ctx, http.MethodGet, AgentJobsPath+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, apperrors.Wrapf(err, "get job %s", jobID)
	}
	return &job, nil
}

// Summary counts the finished runs of the current user.
func (c *Client) Summary(ctx context.Context) (*agent.Summary, error) {
	var summary agent.Summary
	if err := c.do(ctx, http.MethodGet, AgentSummaryPath, nil, &summary); err != nil {
		return nil, apperrors.Wrapf(err, "get job summary")
	}
	return &summary, nil
}

// Logout revokes the session credential on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return apperrors.Wrapf(c.do(ctx, http.MethodPost, LogoutPath, nil, nil), "logout")
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return apperrors.Wrapf(apperrors.ErrInternal, "encode request: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrInternal, "build request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrNetworkFailure, "read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.FromResponse(resp.StatusCode, data, kindForStatus(resp.StatusCode))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.Wrapf(apperrors.ErrInternal, "decode response: %v", err)
	}
	return nil
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return apperrors.ErrSessionExpired
	case http.StatusNotFound:
		return apperrors.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.ErrInvalidRequest
	default:
		return apperrors.ErrInternal
	}
}
