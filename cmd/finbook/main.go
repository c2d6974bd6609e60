package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/finbook/finbook/cmd/finbook/cli"
	"github.com/finbook/finbook/internal/app"
	"github.com/finbook/finbook/internal/fx"
	"github.com/finbook/finbook/internal/platform/db"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	switch os.Args[1] {
	case "fx-import":
		return runFXImport(ctx, cfg, os.Args[2:])
	case "fx-rate":
		return runFXRate(ctx, cfg, os.Args[2:])
	case "jobs":
		return runJobs(ctx, cfg, os.Args[2:])
	default:
		usage(os.Stderr)
		return 2
	}
}

func runFXRate(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("fx-rate", flag.ExitOnError)
	base := fs.String("base", "", "base currency")
	quote := fs.String("quote", cfg.BaseCurrency, "quote currency")
	dateStr := fs.String("date", "", "rate date as YYYY-MM-DD (today when empty)")
	jsonOut := fs.Bool("json", false, "emit a JSON result")
	_ = fs.Parse(args)

	var date time.Time
	if *dateStr != "" {
		parsed, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fx rate: %v\n", err)
			return 1
		}
		date = parsed
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fx rate: connect database: %v\n", err)
		return 1
	}
	defer pool.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	source := fx.NewCache(redisClient, fx.NewRepository(pool), cfg.FxCacheTTL)
	return cli.FXRateCommand(ctx, source, cli.FXRateOptions{
		Base:       *base,
		Quote:      *quote,
		Date:       date,
		JSONOutput: *jsonOut,
	})
}

func runFXImport(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("fx-import", flag.ExitOnError)
	mode := fs.String("mode", "dry", "dry or apply")
	file := fs.String("file", "", "CSV file with date,base,quote,rate rows (stdin when empty)")
	jsonOut := fs.Bool("json", false, "emit a JSON summary")
	_ = fs.Parse(args)

	source := os.Stdin
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fx import: %v\n", err)
			return 1
		}
		defer f.Close()
		source = f
	}

	var store cli.RateStore
	if *mode == string(cli.FXImportModeApply) {
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fx import: connect database: %v\n", err)
			return 1
		}
		defer pool.Close()
		store = fx.NewRepository(pool)
	}

	return cli.NewFXOpsCLI(store).ImportCommand(ctx, cli.FXImportOptions{
		Mode:       cli.FXImportMode(*mode),
		Source:     source,
		JSONOutput: *jsonOut,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	fs := flag.NewFlagSet("jobs", flag.ExitOnError)
	trigger := fs.String("trigger", "", "job name to enqueue")
	ownerID := fs.Int64("owner", 0, "owner id for recon:run")
	stats := fs.Bool("stats", false, "print queue statistics")
	_ = fs.Parse(args)

	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer jobsCLI.Close()

	switch {
	case *trigger == "recon:run":
		info, err := jobsCLI.TriggerReconRun(ctx, *ownerID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s\n", info.Type, info.ID)
	case *trigger != "":
		info, err := jobsCLI.Trigger(ctx, *trigger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s\n", info.Type, info.ID)
	case *stats:
		queueStats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			queueStats.Queue, queueStats.Pending, queueStats.Active, queueStats.Scheduled, queueStats.Retry)
	default:
		fmt.Fprintln(os.Stderr, "jobs: nothing to do, pass -trigger or -stats")
		return 2
	}
	return 0
}

func usage(w *os.File) {
	fmt.Fprintln(w, "usage: finbook <fx-import|fx-rate|jobs> [flags]")
}
