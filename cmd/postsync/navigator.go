package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jrsteele09/postsync/internal/browser"
	"github.com/jrsteele09/postsync/oauthflow"
	"github.com/spf13/cobra"
)

// navigatorFunc opens the provider authorization URL.
type navigatorFunc func(ctx context.Context, url string) error

// cliNavigator opens the browser and falls back to printing the URL.
type cliNavigator struct {
	out  io.Writer
	open navigatorFunc
}

var _ oauthflow.Navigator = (*cliNavigator)(nil)

func defaultNavigator(cmd *cobra.Command) navigatorFunc {
	return func(_ context.Context, url string) error {
		return browser.Open(url)
	}
}

func (n *cliNavigator) Redirect(ctx context.Context, url string) error {
	fmt.Fprintln(n.out, "Opening your browser to sign in...")
	if err := n.open(ctx, url); err != nil {
		fmt.Fprintf(n.out, "Could not open a browser. Visit this URL to continue:\n\n  %s\n\n", url)
	}
	return nil
}

func (n *cliNavigator) Landing() {}

func (n *cliNavigator) Entry() {}
