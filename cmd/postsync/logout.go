package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/postsync/oauthflow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg, oauthflow.NopNavigator{})
			if err != nil {
				return err
			}
			return runLogout(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
}

// runLogout revokes the session on the backend when possible, then clears it locally regardless.
func runLogout(ctx context.Context, a *app, out io.Writer) error {
	if err := a.session.Init(ctx, nil); err != nil {
		log.Debug().Err(err).Msg("failed to restore session before logout")
	}
	if !a.session.IsAuthenticated() {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	if err := a.api.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("backend logout failed, clearing the local session anyway")
	}
	if err := a.session.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Logged out.")
	return nil
}
