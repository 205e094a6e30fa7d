package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/socialdesk/moddesk/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "moddesk",
		Usage:   "content moderation rules engine and editorial workflow daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"MODDESK_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (text or json)",
			EnvVars: []string{"MODDESK_LOG_FMT", "LOG_FORMAT"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MODDESK_MAX_DB_CONNECTIONS", "MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		validateRulesCmd,
		matchCmd,
		tokensCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context, writer io.Writer) (*slog.Logger, error) {
	return cliutil.SetupSlog(writer, cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/moddesk/moddesk.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"MODDESK_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"MODDESK_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL, for counters, caches, and flags (in-process if not set)",
			EnvVars: []string{"MODDESK_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing static keyword and domain sets",
			EnvVars: []string{"MODDESK_SETS_JSON_PATH"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook; notifications are only logged if not set",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token required on all API requests (no auth if not set)",
			EnvVars: []string{"MODDESK_ADMIN_TOKEN"},
		},
		&cli.StringSliceFlag{
			Name:    "reviewer-roles",
			Usage:   "user roles allowed to review editorial workflows",
			Value:   cli.NewStringSlice("admin", "moderator", "editor"),
			EnvVars: []string{"MODDESK_REVIEWER_ROLES"},
		},
		&cli.DurationFlag{
			Name:    "process-timeout",
			Usage:   "deadline for evaluating and executing rules against one content item",
			Value:   10 * time.Second,
			EnvVars: []string{"MODDESK_PROCESS_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "role-cache-ttl",
			Usage:   "how long user roles are cached",
			Value:   30 * time.Minute,
			EnvVars: []string{"MODDESK_ROLE_CACHE_TTL"},
		},
		&cli.DurationFlag{
			Name:    "unknown-user-cache-ttl",
			Usage:   "how long lookups of users missing from the directory are cached (default: a tenth of role-cache-ttl, at most 1m)",
			EnvVars: []string{"MODDESK_UNKNOWN_USER_CACHE_TTL"},
		},
		&cli.IntFlag{
			Name:    "quota-ban-day",
			Usage:   "circuit breaker: maximum automated bans per day (0 for no limit)",
			Value:   50,
			EnvVars: []string{"MODDESK_QUOTA_BAN_DAY"},
		},
		&cli.IntFlag{
			Name:    "quota-remove-day",
			Usage:   "circuit breaker: maximum automated content removals per day (0 for no limit)",
			Value:   500,
			EnvVars: []string{"MODDESK_QUOTA_REMOVE_DAY"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "emit OpenTelemetry spans for database queries",
			EnvVars: []string{"MODDESK_DB_TRACING"},
		},
		&cli.Float64Flag{
			Name:    "api-rate-limit",
			Usage:   "max API requests per second, per client IP (0 for no limit)",
			Value:   50,
			EnvVars: []string{"MODDESK_API_RATE_LIMIT"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger, err := configLogger(cctx, os.Stdout)
		if err != nil {
			return err
		}

		shutdownTracing, err := configOTEL(ctx, "moddesk")
		if err != nil {
			return err
		}
		defer shutdownTracing()

		db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"), logger)
		if err != nil {
			return err
		}
		if cctx.Bool("db-tracing") {
			if err := db.Use(tracing.NewPlugin()); err != nil {
				return err
			}
		}

		srv, err := NewServer(
			db,
			Config{
				Logger:          logger,
				Bind:            cctx.String("bind"),
				RedisURL:        cctx.String("redis-url"),
				SetsFileJSON:    cctx.String("sets-json-path"),
				SlackWebhookURL: cctx.String("slack-webhook-url"),
				AdminToken:      cctx.String("admin-token"),
				ReviewerRoles:   cctx.StringSlice("reviewer-roles"),
				ProcessTimeout:  cctx.Duration("process-timeout"),
				RoleCacheTTL:    cctx.Duration("role-cache-ttl"),
				UnknownUserTTL:  cctx.Duration("unknown-user-cache-ttl"),
				QuotaBanDay:     cctx.Int("quota-ban-day"),
				QuotaRemoveDay:  cctx.Int("quota-remove-day"),
				APIRateLimit:    cctx.Float64("api-rate-limit"),
			},
		)
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.RunAPI(); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}

