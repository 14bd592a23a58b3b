// Package cli implements the nativepkg command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nativepkg/pkg/artifact"
	"github.com/matzehuels/nativepkg/pkg/buildinfo"
	"github.com/matzehuels/nativepkg/pkg/cache"
	"github.com/matzehuels/nativepkg/pkg/config"
	"github.com/matzehuels/nativepkg/pkg/events"
	"github.com/matzehuels/nativepkg/pkg/project"
	"github.com/matzehuels/nativepkg/pkg/registry"
	"github.com/matzehuels/nativepkg/pkg/syncer"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	cfgFile string
	dir     string
	cfg     *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. Debug level also routes registry
// and cache events to the logger.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		installLogHooks(c.Logger)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "nativepkg manages dependencies of native build projects",
		Long: `nativepkg resolves the dependencies declared in nativepkg.toml against a package
registry, places their prebuilt binaries and keeps Android.mk, mod.json and the
editor include paths in sync.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig(cmd)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/nativepkg/config.toml)")
	pf.StringVarP(&c.dir, "dir", "C", "", "project directory (default: nearest parent with nativepkg.toml)")
	pf.String("registry", "", "registry base URL")
	pf.String("token", "", "registry token used by publish")
	pf.Duration("timeout", 0, "registry request timeout")
	pf.String("cache-dir", "", "registry response cache directory")
	pf.String("redis", "", "redis URL for a shared registry response cache")

	root.AddCommand(c.createCommand())
	root.AddCommand(c.packageCommand())
	root.AddCommand(c.dependencyCommand())
	root.AddCommand(c.restoreCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.publishCommand())
	root.AddCommand(c.versionsCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig(cmd *cobra.Command) error {
	cfg, used, err := config.Load(config.LoadOptions{File: c.cfgFile, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	if used != "" {
		c.Logger.Debug("loaded config", "file", used)
	}
	c.cfg = cfg
	return nil
}

// settings returns the loaded configuration, falling back to defaults for
// commands run without the root pre-run (tests).
func (c *CLI) settings() *config.Config {
	if c.cfg == nil {
		d := config.Default()
		c.cfg = &d
	}
	return c.cfg
}

// =============================================================================
// Factories
// =============================================================================

// project locates the project the command operates on.
func (c *CLI) project() (*project.Project, error) {
	if c.dir != "" {
		return project.New(c.dir), nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return project.Find(wd)
}

// newCache opens the registry response cache: Redis when configured,
// otherwise the file cache.
func (c *CLI) newCache(ctx context.Context) (cache.Cache, error) {
	cfg := c.settings()
	if cfg.RedisURL != "" {
		return cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.RedisURL})
	}
	if cfg.CacheDir == "" {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(cfg.CacheDir)
}

// newRegistry returns a registry client and a func releasing its cache.
func (c *CLI) newRegistry(ctx context.Context) (*registry.Client, func(), error) {
	rc, err := c.newCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	client := registry.NewClient(c.settings().RegistryConfig(rc))
	return client, func() { _ = rc.Close() }, nil
}

// newDispatcher wires the lifecycle handlers: binaries are placed before
// the derived files reference them.
func (c *CLI) newDispatcher(p *project.Project, dl artifact.Downloader) *events.Dispatcher {
	placer := artifact.NewPlacer(p, dl, artifact.Options{
		CacheDir: c.settings().DownloadDir,
		Logger:   c.Logger,
	})
	return events.NewDispatcher(placer, syncer.New(p, c.Logger))
}
