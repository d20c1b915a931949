package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Fxc-Ndo02/prepusin-aternos-bot/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "prepusin",
		Short:         "Discord bot that starts and stops an Aternos server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return config.LoadDotEnv()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	root.PersistentFlags().Int("port", 0, "HTTP listen port (env PORT)")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	bindFlag(v, root, "PORT", "port")
	bindFlag(v, root, "LOG_LEVEL", "log-level")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot and the HTTP endpoint (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), v)
			},
		},
		&cobra.Command{
			Use:   "register",
			Short: "Overwrite the slash commands registered with Discord",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runRegister(v)
			},
		},
		&cobra.Command{
			Use:       "check <estado|start|stop>",
			Short:     "Run one browser operation against Aternos and print the result",
			Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
			ValidArgs: []string{"estado", "start", "stop"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCheck(cmd.Context(), v, args[0], cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "hash-token <token>",
			Short: "Print the bcrypt hash to put in API_TOKEN_HASH",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runHashToken(args[0], cmd.OutOrStdout())
			},
		},
	)
	return root
}

// bindFlag ties a flag to a config key. Unset flags fall through to the
// environment and the defaults.
func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}
