package main

import (
	"github.com/jrsteele09/postsync/internal/config"
	"github.com/jrsteele09/postsync/internal/logging"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	cfg        config.ClientConfig

	// newNavigator is swapped in tests so that no browser is launched.
	newNavigator func(cmd *cobra.Command) navigatorFunc
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{newNavigator: defaultNavigator}

	rootCmd := &cobra.Command{
		Use:   "postsync",
		Short: "Sign in with your provider account and drive the posting agent",
		Long: `postsync keeps a local login session for the PostSync backend.

Examples:
  postsync login                       # Sign in through the browser
  postsync status                      # Show who is signed in
  postsync agent start --niche golang  # Queue an agent run
  postsync logout                      # Sign out`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientConfig(opts.configPath, nil)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			logging.Setup(cfg.Env, cfg.LogLevel, cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the client config file (default ~/"+config.DefaultClientConfigPath+")")

	rootCmd.AddCommand(
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newStatusCmd(opts),
		newAgentCmd(opts),
	)
	return rootCmd
}
