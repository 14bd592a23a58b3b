package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nativepkg/pkg/registry/server"
	"github.com/matzehuels/nativepkg/pkg/registry/store"
)

const shutdownTimeout = 5 * time.Second

// serveOpts holds the flags for the serve command.
type serveOpts struct {
	addr     string
	database string
}

// serveCommand runs a registry. Manifests live in MongoDB when --mongo (or
// NATIVEPKG_MONGO_URI) is set, otherwise in memory.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{addr: "127.0.0.1:8080"}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a package registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().String("mongo", "", "MongoDB connection string (default in-memory store)")
	cmd.Flags().StringVar(&opts.database, "database", "", "MongoDB database name (default nativepkg)")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	cfg := c.settings()

	var st store.Store
	if cfg.MongoURI != "" {
		ms, err := store.NewMongoStore(ctx, store.MongoConfig{URI: cfg.MongoURI, Database: opts.database})
		if err != nil {
			return err
		}
		st = ms
		c.Logger.Info("using mongodb store", "database", opts.database)
	} else {
		st = store.NewMemoryStore()
		c.Logger.Warn("using in-memory store; published manifests are lost on exit")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			c.Logger.Warn("close store", "err", err)
		}
	}()

	if cfg.Token == "" {
		c.Logger.Warn("no token configured; publishing is disabled")
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           server.New(st, server.Options{Token: cfg.Token, Logger: c.Logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c.Logger.Info("registry listening", "addr", opts.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		c.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
