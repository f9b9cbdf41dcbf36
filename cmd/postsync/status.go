package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/postsync/oauthflow"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether you are signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg, oauthflow.NopNavigator{})
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

// runStatus prints the identity only, never a credential.
func runStatus(ctx context.Context, a *app, out io.Writer) error {
	if err := a.session.Init(ctx, nil); err != nil {
		return err
	}

	s, ok := a.session.Session()
	if !ok {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}
	fmt.Fprintf(out, "Logged in as %s\n", describe(s))
	fmt.Fprintf(out, "User ID: %s\n", s.UserID)
	if s.Locale != "" {
		fmt.Fprintf(out, "Locale:  %s\n", s.Locale)
	}
	return nil
}
