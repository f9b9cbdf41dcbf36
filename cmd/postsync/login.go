package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jrsteele09/postsync/internal/callback"
	apperrors "github.com/jrsteele09/postsync/internal/errors"
	"github.com/jrsteele09/postsync/sessions"
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the identity provider",
		Long: `Sign in through the identity provider.

A stored session is reused when present. Otherwise the provider's sign-in page is opened in the
browser and postsync waits for it to redirect back to the local callback address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			a, err := newApp(opts.cfg, &cliNavigator{out: out, open: opts.newNavigator(cmd)})
			if err != nil {
				return err
			}
			return runLogin(cmd.Context(), a, out)
		},
	}
}

func runLogin(ctx context.Context, a *app, out io.Writer) error {
	if err := a.session.Init(ctx, nil); err != nil {
		return err
	}
	if s, ok := a.session.Session(); ok {
		fmt.Fprintf(out, "Already logged in as %s\n", describe(s))
		return nil
	}

	listener, err := callback.Listen(a.cfg.RedirectURI)
	if err != nil {
		return err
	}
	defer listener.Close()

	if _, err := a.session.SignIn(ctx); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, a.cfg.CallbackTimeout)
	defer cancel()
	query, err := listener.Wait(waitCtx)
	if err != nil {
		a.session.Teardown()
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Wrapf(apperrors.ErrAuthRejected, "timed out waiting for the provider to redirect back")
		}
		return err
	}

	if err := a.session.HandleCallback(ctx, query); err != nil {
		fmt.Fprintln(out, "Login failed.")
		return err
	}

	s, ok := a.session.Session()
	if !ok {
		return apperrors.Wrapf(apperrors.ErrInternal, "login finished without a session")
	}
	fmt.Fprintf(out, "Logged in as %s\n", describe(s))
	return nil
}

func describe(s sessions.Session) string {
	name := s.DisplayName
	if name == "" {
		name = s.UserID
	}
	if s.HasEmail() {
		return fmt.Sprintf("%s <%s>", name, s.Email)
	}
	return name
}
