package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kholzweiler/planfreeze/internal/api"
	"github.com/kholzweiler/planfreeze/pkg/cache"
	"github.com/kholzweiler/planfreeze/pkg/engine"
	"github.com/kholzweiler/planfreeze/pkg/store"
)

// shutdownGrace is how long in-flight requests get to finish on shutdown.
const shutdownGrace = 10 * time.Second

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr      string // listen address
	redisAddr string // Redis cache backend (file cache if empty)
	redisDB   int    // Redis database number
	mongoURI  string // MongoDB run archive (in-memory if empty)
	mongoDB   string // MongoDB database name
	storeDir  string // file-backed run archive directory
	noCache   bool   // disable result caching
}

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{addr: ":8080", mongoDB: appName}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution API over HTTP",
		Long: `Serve the resolution API over HTTP.

Without flags the server uses the local file cache and an in-memory run
archive, which is suitable for development. Production deployments point
--redis at a Redis instance for shared result caching and --mongo at a
MongoDB instance for a durable run archive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for result caching (e.g. localhost:6379)")
	cmd.Flags().IntVar(&opts.redisDB, "redis-db", 0, "Redis database number")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo", "", "MongoDB URI for the run archive (e.g. mongodb://localhost:27017)")
	cmd.Flags().StringVar(&opts.mongoDB, "mongo-db", opts.mongoDB, "MongoDB database name")
	cmd.Flags().StringVar(&opts.storeDir, "store-dir", "", "directory for a file-backed run archive")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable result caching")

	return cmd
}

// runServe wires the cache, store, and runner together and serves until the
// context is cancelled.
func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	resultCache, err := c.serveCache(opts)
	if err != nil {
		return err
	}
	runner := engine.NewRunner(resultCache, nil, c.Logger)
	defer runner.Close()

	runStore, err := c.serveStore(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = runStore.Close(closeCtx)
	}()

	server := api.NewServer(api.Options{
		Addr:   opts.addr,
		Runner: runner,
		Store:  runStore,
		Logger: c.Logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		c.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// serveCache picks the cache backend from flags.
func (c *CLI) serveCache(opts *serveOpts) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	if opts.redisAddr != "" {
		rc, err := cache.NewRedisCache(opts.redisAddr, "", opts.redisDB)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		c.Logger.Info("using redis cache", "addr", opts.redisAddr)
		return rc, nil
	}
	return newCache(false), nil
}

// serveStore picks the run archive backend from flags. MongoDB wins when both
// --mongo and --store-dir are set.
func (c *CLI) serveStore(ctx context.Context, opts *serveOpts) (store.Store, error) {
	if opts.mongoURI != "" {
		ms, err := store.NewMongoStore(ctx, opts.mongoURI, opts.mongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		c.Logger.Info("using mongodb run archive", "db", opts.mongoDB)
		return ms, nil
	}
	if opts.storeDir != "" {
		fs, err := store.NewFileStore(opts.storeDir)
		if err != nil {
			return nil, fmt.Errorf("open run archive: %w", err)
		}
		c.Logger.Info("using file run archive", "dir", fs.Path())
		return fs, nil
	}
	c.Logger.Info("using in-memory run archive")
	return store.NewMemoryStore(), nil
}
