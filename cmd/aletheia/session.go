package main

import (
	"fmt"
	"time"

	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/session"
	"github.com/spf13/cobra"
)

func mapUser(pu session.ProviderUser) model.User {
	return session.MapUser(pu, time.Now())
}

func loginCmd() *cobra.Command {
	var (
		provider string
		profile  session.Profile
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an identity provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if profile.Name != "" || profile.Email != "" {
				ctx = session.WithProfile(ctx, profile)
			}
			users := session.NewManager(newSessionProvider(cfg))
			user, err := users.SignIn(ctx, provider)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s> via %s\n", user.Name, user.Email, provider)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", session.ProviderGoogle, "identity provider: google or github")
	cmd.Flags().StringVar(&profile.Name, "name", "", "display name")
	cmd.Flags().StringVar(&profile.Email, "email", "", "email address")
	cmd.Flags().StringVar(&profile.PhotoURL, "photo-url", "", "avatar image URL")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := newSessionProvider(cfg).SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pu, err := newSessionProvider(cfg).Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if pu == nil {
				fmt.Fprintln(out, "Not signed in. Run `aletheia login`.")
				return nil
			}
			u := mapUser(*pu)
			fmt.Fprintf(out, "%s <%s>\nprovider: %s\navatar: %s\nconnected: %s\n",
				u.Name, u.Email, pu.Provider, u.Avatar, u.ConnectedAt.Local().Format(time.RFC1123))
			return nil
		},
	}
}
