package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/metalagman/aletheia/internal/config"
	"github.com/metalagman/aletheia/internal/dashboard"
	"github.com/metalagman/aletheia/internal/journal"
	"github.com/metalagman/aletheia/internal/planapi"
	"github.com/metalagman/aletheia/internal/session"
	"github.com/metalagman/aletheia/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Web.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Web.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides web.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides web.port)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	app := newServeApp(cfg)
	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.Stop(stopCtx)
}

func newServeApp(cfg config.Config, opts ...fx.Option) *fx.App {
	return fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		fx.Provide(
			newServeClient,
			newServeJournal,
			newServeSessions,
			newServeController,
			newServeServer,
		),
		fx.Invoke(registerHTTP),
		fx.Options(opts...),
	)
}

func newServeClient(cfg config.Config) (*planapi.Client, error) {
	return newPlanClient(cfg, cfg.Web.Host)
}

func newServeJournal(lc fx.Lifecycle, cfg config.Config) (*journal.Store, error) {
	store, err := openJournal(cfg)
	if err != nil || store == nil {
		return store, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

func newServeSessions(lc fx.Lifecycle, cfg config.Config) *session.Manager {
	users := session.NewManager(newSessionProvider(cfg))
	lc.Append(fx.Hook{
		// The watch outlives the start context.
		OnStart: func(context.Context) error { return users.Start(context.Background()) },
		OnStop: func(context.Context) error {
			users.Close()
			return nil
		},
	})
	return users
}

func newServeController(lc fx.Lifecycle, cfg config.Config, client *planapi.Client, store *journal.Store, users *session.Manager) *dashboard.Controller {
	ctrl := dashboard.New(client, controllerOptions(cfg, store, users.Current, true)...)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			ctrl.Close()
			return nil
		},
	})
	return ctrl
}

func newServeServer(ctrl *dashboard.Controller, users *session.Manager, client *planapi.Client) (*web.Server, error) {
	return web.NewServer(ctrl, users, client.Health)
}

func registerHTTP(lc fx.Lifecycle, cfg config.Config, srv *web.Server, client *planapi.Client) {
	httpSrv := &http.Server{
		Addr:              cfg.WebAddr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", httpSrv.Addr)
			if err != nil {
				return err
			}
			log.Info().Str("addr", "http://"+ln.Addr().String()).Str("backend", client.BaseURL()).Msg("serving dashboard")
			go func() {
				if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("http server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return httpSrv.Shutdown(ctx)
		},
	})
}
