// vclip-admin is the operator CLI: queue depths, refcount overrides and
// one-shot stale sweeps.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/peterbourgon/ff/v3"
	"github.com/redis/go-redis/v9"

	"github.com/vmatresu/vclip/clients"
	"github.com/vmatresu/vclip/config"
	"github.com/vmatresu/vclip/coordinator"
	"github.com/vmatresu/vclip/progress"
	"github.com/vmatresu/vclip/queue"
	"github.com/vmatresu/vclip/stale"
	"github.com/vmatresu/vclip/store"
)

func main() {
	fs := flag.NewFlagSet("vclip-admin", flag.ExitOnError)
	redisURL := fs.String("redis-url", "redis://localhost:6379", "Redis connection URL")
	databaseURL := fs.String("database-url", "", "Document store connection string (needed for sweep)")
	blobStoreURL := fs.String("blob-store", "", "Object store base URL (needed for presign)")
	blobKey := fs.String("key", "", "Blob key for presign")
	userID := fs.String("user", "", "User id for force-cleanup")
	videoID := fs.String("video", "", "Video id for force-cleanup")

	if len(os.Args) < 2 {
		usage()
	}
	if err := ff.Parse(fs, os.Args[2:], ff.WithEnvVarPrefix("VCLIP")); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	opts, err := redis.ParseURL(*redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid redis url: %v\n", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opts)
	ctx := context.Background()

	switch os.Args[1] {
	case "queue-depth":
		q := queue.New(rdb, queue.DefaultConfig())
		depth, err := q.Len(ctx)
		fatalIf(err)
		dlq, err := q.DLQLen(ctx)
		fatalIf(err)
		fmt.Printf("jobs=%d dlq=%d\n", depth, dlq)

	case "force-cleanup":
		if *userID == "" || *videoID == "" {
			fmt.Fprintln(os.Stderr, "force-cleanup requires -user and -video")
			os.Exit(1)
		}
		fatalIf(coordinator.New(rdb).ForceCleanup(ctx, *userID, *videoID))
		fmt.Println("cleaned")

	case "refcount":
		if *userID == "" || *videoID == "" {
			fmt.Fprintln(os.Stderr, "refcount requires -user and -video")
			os.Exit(1)
		}
		n, err := coordinator.New(rdb).ActiveCount(ctx, *userID, *videoID)
		fatalIf(err)
		fmt.Printf("count=%d\n", n)

	case "sweep":
		if *databaseURL == "" {
			fmt.Fprintln(os.Stderr, "sweep requires -database-url")
			os.Exit(1)
		}
		db, err := store.Open(*databaseURL)
		fatalIf(err)
		defer db.Close()

		detector := stale.NewDetector(
			progress.NewStatusCache(rdb),
			progress.NewBus(rdb),
			store.NewVideoRepo(db),
		)
		staleCount, recovered, err := detector.CheckOnce(ctx)
		fatalIf(err)
		fmt.Printf("stale=%d recovered=%d\n", staleCount, recovered)

	case "presign":
		if *blobStoreURL == "" || *blobKey == "" {
			fmt.Fprintln(os.Stderr, "presign requires -blob-store and -key")
			os.Exit(1)
		}
		base, err := url.Parse(*blobStoreURL)
		fatalIf(err)
		signed, err := clients.NewBlobStore(base).Presign(*blobKey)
		fatalIf(err)
		fmt.Println(signed)

	case "version":
		fmt.Printf("vclip-admin version %s\n", config.Version)

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vclip-admin <queue-depth|force-cleanup|refcount|sweep|presign|version> [flags]")
	os.Exit(1)
}

func fatalIf(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
