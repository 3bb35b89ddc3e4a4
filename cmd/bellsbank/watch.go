package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bellsbank/bellsbank/internal/adapters/visibility"
	"github.com/bellsbank/bellsbank/internal/bootstrap"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	httpx "github.com/bellsbank/bellsbank/internal/http"
)

func newWatchCommand(a *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and print every state change",
		Long: "Runs the refresh scheduler and the status server until interrupted. " +
			"Each state change is printed as one JSON line. SIGCONT triggers a visibility refresh.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, cmd.OutOrStdout(), creds)
		},
	}
	creds.bind(cmd)
	return cmd
}

func (a *app) runWatch(ctx context.Context, out io.Writer, creds credentials) error {
	vis := visibility.NewSignal(a.Logger)
	rt, err := a.open(ctx, bootstrap.RuntimeOptions{
		Config:     &a.Config,
		Logger:     a.Logger,
		Visibility: vis,
	})
	if err != nil {
		return err
	}
	defer a.closeRuntime(ctx, rt)

	var ln net.Listener
	if addr := a.Config.HTTP.Addr; addr != "" {
		if ln, err = net.Listen("tcp", addr); err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
	}

	store := rt.Session.Store
	snapshots, release := store.Watch()
	defer release()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return vis.Run(gctx) })
	g.Go(func() error { return printSnapshots(gctx, out, snapshots) })

	if ln != nil {
		metrics := rt.Observability.Prometheus
		cfg := bootstrap.StatusServerConfig{
			HTTP:      a.Config.HTTP,
			Session:   store,
			Refresher: rt.Session.Scheduler,
			Logger:    a.Logger,
		}
		if metrics != nil {
			cfg.Metrics = metrics.Handler()
		}
		server := bootstrap.NewStatusServer(cfg)
		g.Go(func() error { return bootstrap.ServeHTTP(gctx, server, ln, a.Config.HTTP, a.Logger) })
	}

	g.Go(func() error {
		store.Initialize(gctx)
		if creds.Email == "" || !store.Snapshot().NeedsSignIn() {
			return nil
		}
		// A failed sign-in leaves the engine running signed out.
		if err := store.SignIn(gctx, creds.Email, creds.Password); err != nil {
			a.Logger.WarnContext(gctx, "sign-in failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// printSnapshots writes one JSON line per snapshot until ctx is done.
func printSnapshots(ctx context.Context, out io.Writer, snapshots <-chan domainauth.Snapshot) error {
	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := enc.Encode(httpx.NewSessionView(snap, time.Now())); err != nil {
				return err
			}
		}
	}
}
