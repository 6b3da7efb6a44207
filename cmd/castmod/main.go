package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/castmod/castmod/automod/channelstore"
	"github.com/castmod/castmod/automod/markerstore"
	"github.com/castmod/castmod/automod/rule"
	"github.com/castmod/castmod/sweep"
	"github.com/castmod/castmod/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/gorm"
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
		Name:    "castmod",
		Usage:   "channel moderation rules for farcaster",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/castmod/castmod.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; counters, caches and sweep markers stay in-process when unset",
			EnvVars: []string{"CASTMOD_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "neynar-host",
			Value:   "https://api.neynar.com",
			EnvVars: []string{"NEYNAR_HOST"},
		},
		&cli.StringFlag{
			Name:    "neynar-api-key",
			EnvVars: []string{"NEYNAR_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "warpcast-host",
			Value:   "https://api.warpcast.com",
			EnvVars: []string{"WARPCAST_HOST"},
		},
		&cli.StringFlag{
			Name:    "warpcast-api-key",
			Usage:   "API key of the moderator account actions are taken as",
			EnvVars: []string{"WARPCAST_API_KEY"},
		},
		&cli.BoolFlag{
			Name:    "readonly",
			Usage:   "evaluate and log decisions, but take no moderation actions",
			EnvVars: []string{"CASTMOD_READONLY", "READONLY"},
		},
		&cli.IntFlag{
			Name:    "sweep-limit",
			Usage:   "casts checked per sweep, rounded up to whole pages",
			Value:   500,
			EnvVars: []string{"CASTMOD_SWEEP_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "sweep-delay",
			Usage:   "pause between casts processed by a sweep",
			Value:   500 * time.Millisecond,
			EnvVars: []string{"CASTMOD_SWEEP_DELAY"},
		},
		&cli.DurationFlag{
			Name:    "sweep-window",
			Usage:   "how long a started sweep keeps others of the same channel out",
			Value:   markerstore.DefaultWindow,
			EnvVars: []string{"CASTMOD_SWEEP_WINDOW"},
		},
		&cli.IntFlag{
			Name:    "max-concurrent-sweeps",
			Value:   10,
			EnvVars: []string{"CASTMOD_MAX_CONCURRENT_SWEEPS"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"CASTMOD_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		sweepCmd,
		validateCmd,
	}

	return app.Run(args)
}

func configFromCLI(cctx *cli.Context, logger *slog.Logger) Config {
	return Config{
		Logger:         logger,
		RedisURL:       cctx.String("redis-url"),
		NeynarHost:     cctx.String("neynar-host"),
		NeynarAPIKey:   cctx.String("neynar-api-key"),
		WarpcastHost:   cctx.String("warpcast-host"),
		WarpcastAPIKey: cctx.String("warpcast-api-key"),
		ReadOnly:       cctx.Bool("readonly"),
		SweepWindow:    cctx.Duration("sweep-window"),
		SweepOptions: sweep.Options{
			Limit:         cctx.Int("sweep-limit"),
			PostDelay:     cctx.Duration("sweep-delay"),
			MaxConcurrent: cctx.Int("max-concurrent-sweeps"),
		},
	}
}

func openDatabase(cctx *cli.Context) (*gorm.DB, error) {
	db, err := cliutil.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin()); err != nil {
		return nil, err
	}
	return db, nil
}

func setupLogger(cctx *cli.Context) (*slog.Logger, error) {
	return cliutil.SetupSlog(cliutil.LogOptions{LogLevel: cctx.String("log-level")})
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3999",
			EnvVars: []string{"CASTMOD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"CASTMOD_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:     "admin-password",
			Usage:    "HTTP Basic password (username 'admin') for the API",
			Required: true,
			EnvVars:  []string{"CASTMOD_ADMIN_PASSWORD"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := setupLogger(cctx)
		if err != nil {
			return err
		}
		shutdownOTEL := configOTEL("castmod", versioninfo.Short())
		defer shutdownOTEL()

		db, err := openDatabase(cctx)
		if err != nil {
			return err
		}

		config := configFromCLI(cctx, logger)
		config.Bind = cctx.String("bind")
		config.AdminPassword = cctx.String("admin-password")

		srv, err := NewServer(db, config)
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		return srv.RunAPI()
	},
}

var sweepCmd = &cli.Command{
	Name:      "sweep",
	Usage:     "sweep one channel in the foreground",
	ArgsUsage: `<channel-id>`,
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		channelID := cctx.Args().First()
		if channelID == "" {
			return fmt.Errorf("need to provide channel ID as an argument")
		}
		logger, err := setupLogger(cctx)
		if err != nil {
			return err
		}

		db, err := openDatabase(cctx)
		if err != nil {
			return err
		}
		srv, err := NewServer(db, configFromCLI(cctx, logger))
		if err != nil {
			return err
		}

		ch, err := srv.channels.Get(ctx, channelID)
		if errors.Is(err, channelstore.ErrNotFound) {
			return fmt.Errorf("channel %s has no moderation config", channelID)
		} else if err != nil {
			return err
		}
		st, err := srv.sweeper.Run(ctx, ch)
		if errors.Is(err, sweep.ErrSweepActive) {
			fmt.Println(sweep.MessageAlreadyActive)
			return nil
		}
		if st != nil {
			fmt.Printf("%s: %d pages, %d casts checked, %d processed, %d actioned\n",
				st.State, st.Pages, st.CastsChecked, st.CastsProcessed, st.CastsActioned)
		}
		return err
	},
}

var validateCmd = &cli.Command{
	Name:      "validate",
	Usage:     "check a channel moderation config file, and optionally save it",
	ArgsUsage: `<file.json>`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "save",
			Usage: "store the config once it validates",
		},
	},
	Action: func(cctx *cli.Context) error {
		path := cctx.Args().First()
		if path == "" {
			return fmt.Errorf("need to provide a config file path as an argument")
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ch, err := rule.ParseChannel(raw)
		if err != nil {
			var verrs rule.ValidationErrors
			if errors.As(err, &verrs) {
				for _, ve := range verrs {
					fmt.Println(ve.Error())
				}
				return fmt.Errorf("%s: %d problems found", path, len(verrs))
			}
			return err
		}
		fmt.Printf("%s: channel %s, %d rule sets OK\n", path, ch.ID, len(ch.RuleSets))

		if !cctx.Bool("save") {
			return nil
		}
		db, err := openDatabase(cctx)
		if err != nil {
			return err
		}
		store := channelstore.NewGormStore(db)
		if err := store.Migrate(); err != nil {
			return err
		}
		return store.Put(cctx.Context, ch)
	},
}
