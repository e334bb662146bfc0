// Command kvsd runs a single kvs rank: a content cache, fence table,
// watchlist, and root state, served over gRPC. The message broker that
// sequences fences across ranks and republishes setroot/error events is an
// out-of-scope collaborator (spec.md §2); this binary drives itself with a
// local heartbeat ticker and a single in-process root, suitable for
// standalone operation or as the target of a broker relay wired in later.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/jrife/flock/content"
	"github.com/jrife/flock/kvs/service"
	"github.com/jrife/flock/kvs/tree"
	"github.com/jrife/flock/transport/kvsgrpc"
)

func main() {
	listenAddr := flag.String("listen", ":7040", "address to serve the Kvs gRPC service on")
	dbPath := flag.String("db", "", "path to a bbolt-backed content store; empty uses an in-memory store")
	heartbeatInterval := flag.Duration("heartbeat-interval", time.Second, "interval between epoch heartbeats")
	maxLastuseAge := flag.Uint64("max-lastuse-age", service.DefaultMaxLastuseAge, "heartbeats a clean cache entry may sit unwaited before it is evictable")
	mergeCommits := flag.Bool("merge-commits", true, "merge ready commits that don't request no-merge before draining")
	devLogging := flag.Bool("dev-logging", false, "use zap's development logger instead of the production JSON logger")
	flag.Parse()

	logger, err := newLogger(*devLogging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kvsd: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, closeStore, err := openStore(*dbPath)
	if err != nil {
		logger.Fatal("kvsd: opening content store", zap.Error(err))
	}
	defer closeStore()

	if err := run(store, *listenAddr, *heartbeatInterval, *maxLastuseAge, *mergeCommits, logger); err != nil {
		logger.Fatal("kvsd exiting", zap.Error(err))
	}
}

// openStore opens the bbolt-backed content store at path, or an in-memory
// store if path is empty, along with a close function that is always safe
// to call.
func openStore(path string) (content.AsyncStore, func() error, error) {
	if path == "" {
		store := content.NewMemStore()
		return store, store.Close, nil
	}

	bboltStore, err := content.Open(path)
	if err != nil {
		return nil, nil, err
	}

	return content.NewSyncAsyncStore(bboltStore), bboltStore.Close, nil
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func run(store content.AsyncStore, listenAddr string, heartbeatInterval time.Duration, maxLastuseAge uint64, mergeCommits bool, logger *zap.Logger) error {
	rootRef, err := seedEmptyRoot(store)
	if err != nil {
		return fmt.Errorf("seeding empty root: %w", err)
	}

	loop := service.NewLoop(service.Config{
		Store:         store,
		IsRoot:        true,
		RootDir:       rootRef,
		MergeCommits:  mergeCommits,
		MaxLastuseAge: maxLastuseAge,
		Logger:        logger,
	})

	stopHeartbeat := startHeartbeat(loop, heartbeatInterval)
	defer stopHeartbeat()

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddr, err)
	}

	grpcServer := grpc.NewServer()
	kvsgrpc.RegisterKvsServer(grpcServer, kvsgrpc.NewServer(loop))

	logger.Info("kvsd listening", zap.String("addr", listenAddr), zap.String("root", rootRef))

	return grpcServer.Serve(listener)
}

// seedEmptyRoot stores an empty directory as the rank's starting root, the
// state a freshly bootstrapped kvs rank has before any commit has run.
func seedEmptyRoot(store content.AsyncStore) (string, error) {
	encoded, err := tree.EncodeDirectory(tree.Directory{})
	if err != nil {
		return "", err
	}

	var ref string
	var storeErr error
	done := make(chan struct{})

	store.StoreAsync(context.Background(), encoded, func(r string, err error) {
		ref, storeErr = r, err
		close(done)
	})

	<-done

	return ref, storeErr
}

// startHeartbeat drives the loop's epoch clock, standing in for the
// out-of-scope heartbeat collaborator named in spec.md §2. It returns a
// function that stops the ticker.
func startHeartbeat(loop *service.Loop, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				loop.HandleHeartbeat()
			case <-done:
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}
