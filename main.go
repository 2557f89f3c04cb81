package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/vmatresu/vclip/analysis"
	"github.com/vmatresu/vclip/clients"
	"github.com/vmatresu/vclip/config"
	"github.com/vmatresu/vclip/coordinator"
	"github.com/vmatresu/vclip/credits"
	"github.com/vmatresu/vclip/log"
	"github.com/vmatresu/vclip/metrics"
	"github.com/vmatresu/vclip/progress"
	"github.com/vmatresu/vclip/queue"
	"github.com/vmatresu/vclip/stale"
	"github.com/vmatresu/vclip/store"
	"github.com/vmatresu/vclip/worker"
)

func main() {
	fs := flag.NewFlagSet("vclip-worker", flag.ExitOnError)
	cli := config.Cli{}

	hostname, _ := os.Hostname()

	fs.IntVar(&cli.PromPort, "prom-port", 2112, "Port to expose Prometheus metrics on")
	fs.StringVar(&cli.RedisURL, "redis-url", "redis://localhost:6379", "Redis connection URL for queue, progress bus and coordination")
	fs.StringVar(&cli.DatabaseURL, "database-url", "", "Connection string for the document store. Takes the form: host=X port=X user=X password=X dbname=X")
	fs.StringVar(&cli.BlobStoreURL, "blob-store", "", "Object store base URL for sources, clips and analysis artifacts")
	fs.StringVar(&cli.WorkDir, "work-dir", "/var/lib/vclip/work", "Local scratch directory for in-flight jobs")
	fs.StringVar(&cli.ModelsDir, "models-dir", "/usr/local/share/vclip/models", "Directory holding the neural face model")
	fs.StringVar(&cli.ConsumerName, "consumer-name", hostname, "Queue consumer name for this worker")
	fs.StringVar(&cli.JobStream, "job-stream", config.DefaultJobStream, "Redis stream carrying jobs")
	fs.StringVar(&cli.ConsumerGroup, "consumer-group", config.DefaultConsumerGroup, "Queue consumer group")
	fs.StringVar(&cli.DLQStream, "dlq-stream", config.DefaultDLQStream, "Dead-letter stream")
	fs.BoolVar(&cli.EnableStaleDetection, "stale-detection", true, "Run the stale-job detector in this process")
	fs.BoolVar(&cli.SelfCheck, "selfcheck", false, "Verify runtime dependencies and exit")
	fs.IntVar(&config.MaxConcurrentJobs, "max-concurrent-jobs", config.MaxConcurrentJobs, "Maximum jobs processed concurrently")
	fs.IntVar(&config.MaxConcurrentEncodes, "max-concurrent-encodes", config.MaxConcurrentEncodes, "Maximum concurrent media toolchain invocations")
	fs.IntVar(&config.MaxConcurrentScenes, "max-concurrent-scenes", config.MaxConcurrentScenes, "Maximum concurrent scene pipelines within one job")
	fs.IntVar(&config.MaxConcurrentInference, "max-concurrent-inference", config.MaxConcurrentInference, "Maximum concurrent neural inference calls")
	fs.IntVar(&config.MaxConcurrentDownloads, "max-concurrent-downloads", config.MaxConcurrentDownloads, "Maximum concurrent source downloads")
	version := fs.Bool("version", false, "print application version")

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("VCLIP")); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}
	if *version {
		fmt.Printf("vclip-worker version %s\n", config.Version)
		return
	}

	if err := run(cli); err != nil {
		log.LogNoJobID("fatal startup error", "err", err)
		os.Exit(1)
	}
}

func run(cli config.Cli) error {
	opts, err := redis.ParseURL(cli.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	var db *store.DB
	if cli.DatabaseURL != "" {
		db, err = store.Open(cli.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	blobBase, err := url.Parse(cli.BlobStoreURL)
	if err != nil || cli.BlobStoreURL == "" {
		return fmt.Errorf("a valid -blob-store URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cli.SelfCheck {
		if err := worker.SelfCheck(ctx, rdb, db, cli.ModelsDir); err != nil {
			return err
		}
		return nil
	}
	if db == nil {
		return fmt.Errorf("-database-url is required")
	}

	q := queue.New(rdb, queue.Config{
		Stream:            cli.JobStream,
		Group:             cli.ConsumerGroup,
		DLQStream:         cli.DLQStream,
		DedupTTL:          config.DedupTTL,
		VisibilityTimeout: config.VisibilityTimeout,
	})
	if err := q.Init(ctx); err != nil {
		return err
	}

	status := progress.NewStatusCache(rdb)
	bus := progress.NewBus(rdb)
	sources := coordinator.New(rdb)
	ledger := credits.NewLedger(store.NewUserRepo(db), store.NewTransactionRepo(db))
	blob := clients.NewBlobStore(blobBase)
	cache := analysis.NewCache(blob)

	executor := worker.NewExecutor(cli.ConsumerName, cli.WorkDir, cli.ModelsDir, blob,
		q, status, bus, sources, ledger, cache, db)

	metrics.Metrics.Version.Inc()
	log.LogNoJobID("starting vclip worker",
		"consumer", cli.ConsumerName,
		"version", config.Version,
		"work_dir", cli.WorkDir,
	)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return executor.Run(ctx)
	})

	if cli.EnableStaleDetection {
		detector := stale.NewDetector(status, bus, store.NewVideoRepo(db))
		group.Go(func() error {
			detector.Run(ctx)
			return nil
		})
	}

	group.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: fmt.Sprintf(":%d", cli.PromPort), Handler: mux}
		go func() {
			<-ctx.Done()
			_ = server.Close()
		}()
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	err = group.Wait()
	if ctx.Err() != nil {
		log.LogNoJobID("received signal, shut down gracefully")
		os.Exit(130)
	}
	return err
}
