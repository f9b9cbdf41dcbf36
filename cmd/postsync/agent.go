package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/postsync/api"
	apperrors "github.com/jrsteele09/postsync/internal/errors"
	"github.com/jrsteele09/postsync/oauthflow"
	"github.com/spf13/cobra"
)

func newAgentCmd(opts *rootOptions) *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Run and inspect the posting agent",
	}

	var niche string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Queue an agent run for a niche",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				return runAgentStart(ctx, a, out, niche)
			})
		},
	}
	startCmd.Flags().StringVar(&niche, "niche", "", "Topic the agent writes about")
	_ = startCmd.MarkFlagRequired("niche")

	jobCmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show the status of an agent run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				job, err := a.api.Job(ctx, args[0])
				if err != nil {
					return reportAPIError(out, a, err)
				}
				fmt.Fprintf(out, "Job %s: %s (niche %q)\n", job.ID, job.Status, job.Niche)
				if job.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", job.Error)
				}
				return nil
			})
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Count your finished agent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				summary, err := a.api.Summary(ctx)
				if err != nil {
					return reportAPIError(out, a, err)
				}
				fmt.Fprintf(out, "Completed: %d\nFailed:    %d\n", summary.TotalCompleted, summary.TotalFailed)
				return nil
			})
		},
	}

	agentCmd.AddCommand(startCmd, jobCmd, summaryCmd)
	return agentCmd
}

// withApp restores the stored session before running fn.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app, out io.Writer) error) error {
	a, err := newApp(opts.cfg, oauthflow.NopNavigator{})
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := a.session.Init(ctx, nil); err != nil {
		return err
	}
	return fn(ctx, a, cmd.OutOrStdout())
}

func runAgentStart(ctx context.Context, a *app, out io.Writer, niche string) error {
	resp, err := a.api.StartAgent(ctx, niche)
	if err != nil {
		return reportAPIError(out, a, err)
	}
	fmt.Fprintln(out, resp.Message)
	if resp.JobID != "" {
		fmt.Fprintf(out, "Job ID: %s\n", resp.JobID)
	}
	return nil
}

// reportAPIError prints the backend's detail message, or a hint when the session is gone.
func reportAPIError(out io.Writer, a *app, err error) error {
	var apiErr *apperrors.APIError
	switch {
	case apperrors.Is(err, apperrors.ErrSessionExpired):
		fmt.Fprintln(out, "Your session has expired. Run 'postsync login' again.")
	case apperrors.Is(err, apperrors.ErrMissingCredential) && !a.session.IsAuthenticated():
		fmt.Fprintln(out, "Not logged in. Run 'postsync login' first.")
	case apperrors.Is(err, apperrors.ErrMissingCredential):
		fmt.Fprintln(out, api.MissingEmailMessage)
	case apperrors.As(err, &apiErr) && apiErr.Detail != "":
		fmt.Fprintln(out, apiErr.Detail)
	}
	return err
}
