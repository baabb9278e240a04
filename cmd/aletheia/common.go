package main

import (
	"context"
	"strings"

	"github.com/metalagman/aletheia/internal/activity"
	"github.com/metalagman/aletheia/internal/config"
	"github.com/metalagman/aletheia/internal/dashboard"
	"github.com/metalagman/aletheia/internal/journal"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/planapi"
	"github.com/metalagman/aletheia/internal/session"
	"github.com/spf13/viper"
)

// newPlanClient builds the backend client. servingHost is the host the web
// dashboard is served from, empty for terminal commands.
func newPlanClient(cfg config.Config, servingHost string) (*planapi.Client, error) {
	return planapi.NewClient(planapi.Config{
		BaseURL: config.ResolveBaseURL(cfg.API.BaseURL, servingHost),
		Timeout: cfg.API.Timeout,
	}, nil)
}

// openJournal opens the request journal, or returns nil when it is disabled.
func openJournal(cfg config.Config) (*journal.Store, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	db, err := journal.Open(cfg.JournalPath())
	if err != nil {
		return nil, err
	}
	return journal.NewStore(db), nil
}

func newSessionProvider(cfg config.Config) *session.FileProvider {
	return session.NewFileProvider(cfg.SessionPath(), session.ContextProfile(envProfile))
}

// envProfile reads a sign-in profile from ALETHEIA_PROFILE_* variables.
func envProfile(context.Context, string) (session.Profile, error) {
	p := session.Profile{
		Name:     viper.GetString("profile.name"),
		Email:    viper.GetString("profile.email"),
		PhotoURL: viper.GetString("profile.photo_url"),
	}
	if p.Name == "" && p.Email == "" {
		return session.Profile{}, session.ErrNoProfile
	}
	return p, nil
}

func activityConfig(cfg config.Config) activity.Config {
	out := activity.Config{Cadence: cfg.Activity.Cadence}
	for _, t := range cfg.Activity.Templates {
		out.Templates = append(out.Templates, activity.Template{
			Level:   model.LogLevel(strings.ToUpper(t.Level)),
			Source:  t.Source,
			Message: t.Message,
		})
	}
	return out
}

func controllerOptions(cfg config.Config, j *journal.Store, users func() *model.User, withActivity bool) []dashboard.Option {
	opts := []dashboard.Option{dashboard.WithActivity(activityConfig(cfg))}
	if !withActivity || !cfg.Activity.Enabled {
		opts = append(opts, dashboard.WithoutActivity())
	}
	if j != nil {
		opts = append(opts, dashboard.WithJournal(j))
	}
	if users != nil {
		opts = append(opts, dashboard.WithUser(users))
	}
	return opts
}
