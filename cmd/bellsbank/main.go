package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bellsbank/bellsbank/config"
	"github.com/bellsbank/bellsbank/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	if err := newRootCommand(defaultApp()).ExecuteContext(ctx); err != nil {
		slog.Default().ErrorContext(ctx, "command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command failure to the shell.
	}
}

// app carries the state shared by every subcommand. Fields are filled by the
// root command's pre-run hook.
type app struct {
	Config config.AppConfig
	Logger *slog.Logger

	loadConfig func() (config.AppConfig, error)
	open       func(context.Context, bootstrap.RuntimeOptions) (*bootstrap.Runtime, error)
}

func defaultApp() *app {
	return &app{
		loadConfig: bootstrap.LoadConfig,
		open:       bootstrap.Open,
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "bellsbank",
		Short:         "Session engine for the Bells Bank client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			a.Config = cfg
			a.Logger = bootstrap.InitLogger(cfg.LogLevel, cmd.ErrOrStderr())
			return nil
		},
	}

	root.AddCommand(
		newStatusCommand(a),
		newSignInCommand(a),
		newSignUpCommand(a),
		newSignOutCommand(a),
		newWatchCommand(a),
		newMigrateCommand(a),
	)
	return root
}

// openRuntime wires the session engine and settles its initial state.
func (a *app) openRuntime(ctx context.Context, opts bootstrap.RuntimeOptions) (*bootstrap.Runtime, error) {
	opts.Config = &a.Config
	opts.Logger = a.Logger
	rt, err := a.open(ctx, opts)
	if err != nil {
		return nil, err
	}
	rt.Session.Store.Initialize(ctx)
	return rt, nil
}

func (a *app) closeRuntime(ctx context.Context, rt *bootstrap.Runtime) {
	if err := rt.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "close runtime failed", "error", err)
	}
}
