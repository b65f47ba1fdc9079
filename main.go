package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rentradar/config"
	"rentradar/httputil"
	"rentradar/logging"
	"rentradar/models"
	"rentradar/pipeline"
	"rentradar/scheduler"
	"rentradar/storage"
	"rentradar/vpn"
	"rentradar/workers"
)

const usage = `Usage: rentradar <command> [flags]

Commands:
  run          full sweep: scrape, enrich, persist, export
  scrape-only  scrape and export without scoring, commutes or database
  process-csv  replay enrichment stages over an existing export
  daemon       run on a schedule and serve the command queue
  enqueue      hand a command to a running daemon

Flags:
`

type runFlags struct {
	universities string
	scrapers     string
	noScoring    bool
	noCommute    bool
	noDatabase   bool
	noDetails    bool
	debug        bool
	csvPath      string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	var rf runFlags
	fs.StringVar(&rf.universities, "universities", "", "comma-separated university codes (UNSW,USYD,UTS)")
	fs.StringVar(&rf.universities, "u", "", "shorthand for --universities")
	fs.StringVar(&rf.scrapers, "scrapers", "", "comma-separated sources (domain,realestate)")
	fs.StringVar(&rf.scrapers, "s", "", "shorthand for --scrapers")
	fs.BoolVar(&rf.noScoring, "no-scoring", false, "skip the LLM scoring stage")
	fs.BoolVar(&rf.noCommute, "no-commute", false, "skip the commute stage")
	fs.BoolVar(&rf.noDatabase, "no-database", false, "skip the database stage")
	fs.BoolVar(&rf.noDetails, "no-details", false, "skip detail page fetches")
	fs.BoolVar(&rf.debug, "debug", false, "verbose logging, headful browser")
	fs.StringVar(&rf.csvPath, "csv", "", "input CSV for process-csv")
	fs.Parse(os.Args[2:])

	logFile, err := logging.Setup("rentradar.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}
	if rf.debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if rf.debug {
		cfg.Scraper.Headless = false
	}

	opts, err := buildOptions(&rf)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch command {
	case "run":
		os.Exit(runOnce(ctx, cfg, opts))
	case "scrape-only":
		opts.NoScoring = true
		opts.NoCommute = true
		opts.NoDatabase = true
		os.Exit(runOnce(ctx, cfg, opts))
	case "process-csv":
		os.Exit(runProcessCSV(ctx, cfg, opts, &rf))
	case "daemon":
		os.Exit(runDaemon(ctx, cfg))
	case "enqueue":
		os.Exit(runEnqueue(cfg, fs.Args()))
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func buildOptions(rf *runFlags) (pipeline.Options, error) {
	var opts pipeline.Options
	opts.NoScoring = rf.noScoring
	opts.NoCommute = rf.noCommute
	opts.NoDatabase = rf.noDatabase
	opts.NoDetails = rf.noDetails

	for _, u := range splitList(rf.universities) {
		code := models.SchoolCode(strings.ToUpper(u))
		if code == "" {
			return opts, fmt.Errorf("unknown university: %q", u)
		}
		opts.Universities = append(opts.Universities, code)
	}

	for _, s := range splitList(rf.scrapers) {
		switch strings.ToLower(s) {
		case "domain":
			opts.Sources = append(opts.Sources, models.SourceDomain)
		case "realestate", "rea":
			opts.Sources = append(opts.Sources, models.SourceRealEstate)
		default:
			return opts, fmt.Errorf("unknown scraper: %q", s)
		}
	}
	return opts, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// deps bundles the shared infrastructure behind a run.
type deps struct {
	pipe    *pipeline.Pipeline
	ops     *storage.SQLiteStore
	db      *storage.PostgresStore
	archive *storage.S3Archiver
}

func (d *deps) close() {
	if d.ops != nil {
		d.ops.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// buildDeps wires shared infrastructure. The database is optional for
// CSV-only workflows; a connect failure with the stage enabled is fatal.
func buildDeps(ctx context.Context, cfg *config.Config, needDB bool) (*deps, error) {
	d := &deps{}

	ops, err := storage.NewSQLiteStore(cfg.OpsDBPath)
	if err != nil {
		return nil, fmt.Errorf("open ops store: %w", err)
	}
	d.ops = ops

	if needDB {
		db, err := storage.NewPostgresStore(ctx, cfg.Database.DSN())
		if err != nil {
			d.close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			d.close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		d.db = db
		log.Printf("Connected to Postgres: %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	}

	if cfg.Archive.Enabled() {
		archive, err := storage.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			log.Printf("Warning: archive uploader unavailable: %v", err)
		} else {
			d.archive = archive
		}
	}

	var tunnel *vpn.ExpressVPN
	if cfg.VPN.AutoConnect {
		tunnel = vpn.New(cfg.VPN)
	}

	d.pipe = pipeline.New(cfg, d.ops, d.db, d.archive, tunnel)
	return d, nil
}

func runOnce(ctx context.Context, cfg *config.Config, opts pipeline.Options) int {
	d, err := buildDeps(ctx, cfg, !opts.NoDatabase)
	if err != nil {
		log.Printf("Startup failed: %v", err)
		return 1
	}
	defer d.close()

	if err := d.pipe.Run(ctx, opts); err != nil {
		log.Printf("Run finished with errors: %v", err)
		return 1
	}
	return 0
}

func runProcessCSV(ctx context.Context, cfg *config.Config, opts pipeline.Options, rf *runFlags) int {
	if rf.csvPath == "" {
		log.Println("process-csv requires --csv")
		return 2
	}
	if len(opts.Universities) != 1 {
		log.Println("process-csv requires exactly one --universities value")
		return 2
	}

	d, err := buildDeps(ctx, cfg, !opts.NoDatabase)
	if err != nil {
		log.Printf("Startup failed: %v", err)
		return 1
	}
	defer d.close()

	if err := d.pipe.ProcessCSV(ctx, rf.csvPath, opts.Universities[0], opts); err != nil {
		log.Printf("process-csv failed: %v", err)
		return 1
	}
	return 0
}

func runDaemon(ctx context.Context, cfg *config.Config) int {
	d, err := buildDeps(ctx, cfg, true)
	if err != nil {
		log.Printf("Startup failed: %v", err)
		return 1
	}
	defer d.close()

	clients := httputil.NewClients(cfg.Scraper.ProxyURL)
	opsLog := func(level models.LogLevel, source, message string) {
		if err := d.ops.Log(nil, level, "["+source+"] "+message, ""); err != nil {
			log.Printf("Failed to write ops log: %v", err)
		}
	}

	healthcheck := workers.NewHealthcheckWorker(d.db, clients.Scraping, 24*time.Hour, 20)
	healthcheck.SetLogger(opsLog)
	go healthcheck.Run(ctx, 30*time.Minute)
	log.Println("Healthcheck worker started")

	sched := scheduler.New(cfg, d.pipe, d.ops)
	if d.archive != nil {
		thumbs := workers.NewThumbnailWorker(d.db, d.archive, clients.Scraping, 20)
		thumbs.SetLogger(opsLog)
		go thumbs.Run(ctx, 2*time.Minute)
		log.Println("Thumbnail worker started")
		sched.SetWorkers(thumbs, healthcheck)
	} else {
		sched.SetWorkers(nil, healthcheck)
	}
	if err := sched.Start(ctx); err != nil {
		log.Printf("Failed to start scheduler: %v", err)
		return 1
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("Shutting down...")
	sched.Stop()
	return 0
}

// runEnqueue hands a command to a running daemon via the ops store.
func runEnqueue(cfg *config.Config, args []string) int {
	if len(args) == 0 {
		log.Println("enqueue requires a command name (run_now, run_university, run_thumbs, run_healthcheck, pause, resume)")
		return 2
	}

	ops, err := storage.NewSQLiteStore(cfg.OpsDBPath)
	if err != nil {
		log.Printf("Failed to open ops store: %v", err)
		return 1
	}
	defer ops.Close()

	var params *models.CommandParams
	if len(args) > 1 {
		params = &models.CommandParams{University: strings.ToUpper(args[1])}
	}
	if err := ops.EnqueueCommand(args[0], params); err != nil {
		log.Printf("Failed to enqueue command: %v", err)
		return 1
	}
	log.Printf("Command enqueued: %s", args[0])
	return 0
}
