package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/bellsbank/bellsbank/internal/bootstrap"
	domainauth "github.com/bellsbank/bellsbank/internal/domain/auth"
	httpx "github.com/bellsbank/bellsbank/internal/http"
	"github.com/bellsbank/bellsbank/internal/service"
)

type credentials struct {
	Email    string
	Password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.Email, "email", "", "account email")
	cmd.Flags().StringVar(&c.Password, "password", "", "account password")
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the restored session and profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *service.SessionStore) error {
				return a.printSettled(ctx, cmd.OutOrStdout(), store)
			})
		},
	}
}

func newSignInCommand(a *app) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *service.SessionStore) error {
				if err := store.SignIn(ctx, creds.Email, creds.Password); err != nil {
					return err
				}
				return a.printSettled(ctx, cmd.OutOrStdout(), store)
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newSignUpCommand(a *app) *cobra.Command {
	var (
		creds credentials
		meta  domainauth.SignUpMetadata
	)
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account with its profile details",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *service.SessionStore) error {
				if err := store.SignUp(ctx, creds.Email, creds.Password, meta); err != nil {
					return err
				}
				return a.printSettled(ctx, cmd.OutOrStdout(), store)
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&meta.FullName, "full-name", "", "full name for the profile")
	cmd.Flags().StringVar(&meta.MatricNumber, "matric", "", "matriculation number")
	cmd.Flags().StringVar(&meta.PhoneNumber, "phone", "", "phone number")
	return cmd
}

func newSignOutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *service.SessionStore) error {
				// Local state is cleared even when the provider call fails.
				signOutErr := store.SignOut(ctx)
				return errors.Join(signOutErr, writeView(cmd.OutOrStdout(), store.Snapshot()))
			})
		},
	}
}

func (a *app) withStore(cmd *cobra.Command, fn func(context.Context, *service.SessionStore) error) error {
	ctx := cmd.Context()
	rt, err := a.openRuntime(ctx, bootstrap.RuntimeOptions{})
	if err != nil {
		return err
	}
	defer a.closeRuntime(ctx, rt)
	return fn(ctx, rt.Session.Store)
}

// printSettled waits for the profile of the current user, bounded by the
// profile timeout, and prints the resulting snapshot.
func (a *app) printSettled(ctx context.Context, w io.Writer, store *service.SessionStore) error {
	ctx, cancel := context.WithTimeout(ctx, a.Config.Refresh.ProfileTimeout)
	defer cancel()
	return writeView(w, awaitProfile(ctx, store))
}

// awaitProfile returns the first settled snapshot that either has no user or
// carries the user's profile. On timeout it returns the latest snapshot.
func awaitProfile(ctx context.Context, store *service.SessionStore) domainauth.Snapshot {
	snapshots, release := store.Watch()
	defer release()

	latest := store.Snapshot()
	for {
		if !latest.Loading && (latest.User == nil || latest.Profile != nil) {
			return latest
		}
		select {
		case <-ctx.Done():
			return latest
		case snap, ok := <-snapshots:
			if !ok {
				return latest
			}
			latest = snap
		}
	}
}

func writeView(w io.Writer, snap domainauth.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(httpx.NewSessionView(snap, time.Now()))
}
