// @title Polls API
// @version 1.0
// @description Polls, choices and votes with token authentication.
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /
// @securityDefinitions.apikey TokenAuth
// @in header
// @name Authorization
// @description Type 'Token YOUR_API_TOKEN' to authorize
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/user/polls-go/auth"
	"github.com/user/polls-go/config"
	"github.com/user/polls-go/db"
	_ "github.com/user/polls-go/docs" // registers the Swagger spec
	"github.com/user/polls-go/events"
	"github.com/user/polls-go/polls"
	"github.com/user/polls-go/users"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found or error loading it", "error", err)
	}

	if err := newApp().Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "polls",
		Usage:          "polls API server",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "skip-migrations",
						Usage: "do not apply pending migrations on startup",
					},
				},
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "manage the database schema",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply all pending migrations",
						Action: func(c *cli.Context) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							return db.MigrateUp(cfg.DB.DSN())
						},
					},
					{
						Name:  "down",
						Usage: "roll back migrations",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
						},
						Action: func(c *cli.Context) error {
							cfg, err := loadConfig()
							if err != nil {
								return err
							}
							return db.MigrateDown(cfg.DB.DSN(), c.Int("steps"))
						},
					},
				},
			},
		},
	}
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Log))
	return cfg, nil
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(cfg *config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !c.Bool("skip-migrations") {
		if err := db.MigrateUp(cfg.DB.DSN()); err != nil {
			return err
		}
	}

	pool, err := db.NewPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	broadcaster := events.NewBroadcaster()

	authService := auth.NewAuthService(auth.NewStore(pool), auth.NewTokenSigner(cfg.Auth.TokenSecret))
	userHandlers := users.NewUserHandlers(users.NewUserService(users.NewStore(pool)))
	pollHandler := polls.NewPollHandler(polls.NewPollService(polls.NewStore(pool), broadcaster), broadcaster)

	router := newRouter(routerDeps{
		server: cfg.Server,
		auth:   authService,
		polls:  pollHandler,
		users:  userHandlers,
		healthCheck: func(ctx context.Context) error {
			return db.Ping(ctx, pool)
		},
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// Event streams end when ctx is cancelled on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("server stopped gracefully")
	return nil
}
