// Command pixi is a dev CLI for pixiworld maintenance tasks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"

	"github.com/pixiworld/pixiworld/internal/app"
	"github.com/pixiworld/pixiworld/internal/config"
	"github.com/pixiworld/pixiworld/internal/kv"
	"github.com/pixiworld/pixiworld/internal/logging"
	"github.com/pixiworld/pixiworld/internal/scheduler"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, created, err := config.LoadOrInit()
	logger := logging.New(cfg.Log)
	switch {
	case created:
		logger.Info("created default config", "path", config.ConfigPath())
	case err != nil:
		logger.Warn("could not load config, using defaults", "err", err)
	}

	switch os.Args[1] {
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: pixi open <config|data>")
			os.Exit(1)
		}
		err = runOpen(os.Args[2])
	case "keys":
		err = withApp(cfg, logger, func(_ *app.App, db *kv.KV) error {
			keys, err := db.Keys()
			if err != nil {
				return err
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		})
	case "seed", "count", "reconcile", "watch":
		err = withApp(cfg, logger, func(a *app.App, _ *kv.KV) error {
			return run(os.Args[1], os.Args[2:], cfg, a, logger)
		})
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error(os.Args[1]+" failed", "err", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: pixi <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  seed [--force]  Write the demo posts (--force replaces the feed)")
	fmt.Println("  count           Recompute and print the friends count")
	fmt.Println("  reconcile       Friend any demo posts missing from the registry")
	fmt.Println("  watch           Reconcile on the configured cron schedule")
	fmt.Println("  keys            List the stored slot keys")
	fmt.Println("  open config     Open config file in default editor")
	fmt.Println("  open data       Open data directory in file explorer")
}

func withApp(cfg *config.Config, logger *slog.Logger, fn func(*app.App, *kv.KV) error) error {
	db, err := kv.Open(cfg.ResolvedDBPath())
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := app.New(cfg, db, logger)
	if err != nil {
		return err
	}
	return fn(a, db)
}

func run(cmd string, args []string, cfg *config.Config, a *app.App, logger *slog.Logger) error {
	switch cmd {
	case "seed":
		fs := flag.NewFlagSet("seed", flag.ContinueOnError)
		force := fs.Bool("force", false, "replace existing posts")
		if err := fs.Parse(args); err != nil {
			return err
		}
		seeded, err := a.Seed(*force)
		if err != nil {
			return err
		}
		if seeded == nil {
			fmt.Println("Feed already has posts; use --force to replace them")
			return nil
		}
		fmt.Printf("Seeded %d demo posts\n", len(seeded))
		return nil
	case "count":
		n, err := a.FriendsCount()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	case "reconcile":
		added, count, err := a.Reconcile()
		if err != nil {
			return err
		}
		fmt.Printf("Added %d friend ids, friends count %d\n", added, count)
		return nil
	case "watch":
		return watch(cfg, a, logger)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// watch runs startup once and then reconciles on schedule until interrupted.
func watch(cfg *config.Config, a *app.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Startup(); err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.Reconcile.Timezone, logger)
	if err != nil {
		return err
	}
	reconcile := func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _, err := a.Reconcile()
		return err
	}
	if err := sched.AddJob("reconcile", cfg.Reconcile.Schedule, reconcile); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start()
		<-ctx.Done()
		<-sched.Stop().Done()
		return nil
	})
	g.Go(func() error {
		return sched.RunNow(ctx, "reconcile", reconcile)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runOpen(target string) error {
	var path string

	switch target {
	case "config":
		path = config.ConfigPath()
	case "data":
		path = config.DataDir()
		if err := os.MkdirAll(path, 0700); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown target: %s", target)
	}

	return browser.OpenFile(path)
}
