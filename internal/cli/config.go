package cli

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// configFileName is looked up in the working directory, then in the user
// config directory.
const configFileName = appName + ".toml"

// Config holds defaults read from a boxrender.toml file. Flags override it,
// and environment variables override its backend settings.
//
//	[render]
//	output = "out"
//	workers = 8
//	parallel = 4
//	resolution = 2.0
//
//	[cache]
//	redis_addr = "localhost:6379"
//	prefix = "team-a"
//
//	[history]
//	mongo_uri = "mongodb://localhost:27017"
//
//	[serve]
//	addr = ":9000"
//	timeout = "30s"
type Config struct {
	Render struct {
		Output      string   `toml:"output"`
		Workers     int      `toml:"workers"`
		Parallel    int      `toml:"parallel"`
		Resolution  float64  `toml:"resolution"`
		SkipOpacity *float64 `toml:"skip_opacity"`
	} `toml:"render"`

	Cache struct {
		RedisAddr string `toml:"redis_addr"`
		RedisURL  string `toml:"redis_url"`
		Prefix    string `toml:"prefix"`
	} `toml:"cache"`

	History struct {
		MongoURI string `toml:"mongo_uri"`
	} `toml:"history"`

	Serve struct {
		Addr    string   `toml:"addr"`
		BaseDir string   `toml:"base_dir"`
		Timeout duration `toml:"timeout"`
	} `toml:"serve"`

	// path is the file the config was read from, empty for defaults.
	path string
}

// duration decodes TOML strings such as "30s".
type duration struct{ time.Duration }

func (d *duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// loadConfig reads the config at path. With an empty path it tries the
// default locations and returns an empty Config when none exists; an
// explicit path must exist.
func loadConfig(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	candidates := []string{path}
	if !explicit {
		candidates = defaultConfigPaths()
	}
	for _, p := range candidates {
		md, err := toml.DecodeFile(p, &cfg)
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			continue
		}
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", p, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("config %s: unknown key %q", p, undecoded[0].String())
		}
		cfg.path = p
		return cfg, nil
	}
	return cfg, nil
}

func defaultConfigPaths() []string {
	paths := []string{configFileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, appName, "config.toml"))
	}
	return paths
}

// redisAddr, redisURL, cachePrefix and mongoURI prefer the environment over
// the file.
func (cfg Config) redisAddr() string   { return cmp.Or(os.Getenv(envRedisAddr), cfg.Cache.RedisAddr) }
func (cfg Config) redisURL() string    { return cmp.Or(os.Getenv(envRedisURL), cfg.Cache.RedisURL) }
func (cfg Config) cachePrefix() string { return cmp.Or(os.Getenv(envCachePrefix), cfg.Cache.Prefix) }
func (cfg Config) mongoURI() string    { return cmp.Or(os.Getenv(envMongoURI), cfg.History.MongoURI) }

// applyRender fills render options whose flags were not set explicitly.
func (cfg Config) applyRender(cmd *cobra.Command, opts *renderOpts) {
	flags := cmd.Flags()
	r := cfg.Render
	if r.Output != "" && !flags.Changed("output") {
		opts.output = r.Output
	}
	if r.Workers > 0 && !flags.Changed("workers") {
		opts.workers = r.Workers
	}
	if r.Parallel > 0 && !flags.Changed("parallel") {
		opts.parallel = r.Parallel
	}
	if r.Resolution > 0 && !flags.Changed("resolution") {
		opts.resolution = r.Resolution
	}
	if r.SkipOpacity != nil && !flags.Changed("skip-opacity") {
		opts.skipOpacity = *r.SkipOpacity
	}
}

// applyServe fills serve options whose flags were not set explicitly.
func (cfg Config) applyServe(cmd *cobra.Command, opts *serveOpts) {
	flags := cmd.Flags()
	s := cfg.Serve
	if s.Addr != "" && !flags.Changed("addr") {
		opts.addr = s.Addr
	}
	if s.BaseDir != "" && !flags.Changed("base-dir") {
		opts.baseDir = s.BaseDir
	}
	if s.Timeout.Duration > 0 && !flags.Changed("timeout") {
		opts.timeout = s.Timeout.Duration
	}
}
