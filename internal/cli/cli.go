package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/boxrender/pkg/buildinfo"
	"github.com/matzehuels/boxrender/pkg/cache"
	"github.com/matzehuels/boxrender/pkg/history"
	"github.com/matzehuels/boxrender/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "boxrender"

	// Environment variables selecting shared backends.
	envRedisAddr   = "BOXRENDER_REDIS_ADDR"
	envRedisURL    = "BOXRENDER_REDIS_URL"
	envCachePrefix = "BOXRENDER_CACHE_PREFIX"
	envMongoURI    = "BOXRENDER_MONGO_URI"
)

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
	Config Config

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level. At debug level the task, cache
// and pipeline hooks are logged as well.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	if level <= log.DebugLevel {
		registerLogHooks(c.Logger)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "boxrender renders animated box scenes frame by frame",
		Long:         `boxrender loads a TOML scene of animated boxes, renders each frame on a dependency-aware task scheduler and writes PNG frames. It can also export the task graph of a frame and serve renders over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			if cfg.path != "" {
				c.Logger.Debug("loaded config", "path", cfg.path)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./"+configFileName+")")

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Backend Factories
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if prefix := c.Config.cachePrefix(); prefix != "" {
		keyer = cache.NewScopedKeyer(nil, prefix)
	}
	return pipeline.NewRunner(cc, keyer, c.Logger), nil
}

// newCache picks Redis when configured, else the file cache. An unusable
// cache directory disables caching rather than failing the command.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if addr, url := c.Config.redisAddr(), c.Config.redisURL(); addr != "" || url != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: url, Addr: addr, Prefix: appName + ":"})
		if err != nil {
			return nil, err
		}
		c.Logger.Debug("using redis cache", "addr", addr, "url", url != "")
		return rc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newHistory opens the MongoDB history store when configured.
func (c *CLI) newHistory(ctx context.Context) (history.Store, error) {
	uri := c.Config.mongoURI()
	if uri == "" {
		return history.NewNullStore(), nil
	}
	return history.NewMongoStore(ctx, history.MongoConfig{URI: uri})
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/boxrender/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
