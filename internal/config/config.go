// Package config reads server settings from flags, falling back to the
// environment and an optional .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GameAddr    string
	HTTPAddr    string
	TickTimeout time.Duration
	LogLevel    string
	LogFile     string
	LayoutDir   string
	SkipBuiltin bool

	RedisAddr    string
	RedisKey     string
	RedisChannel string

	DeadlockDetect bool
}

// LoadEnv reads path into the process environment. A missing file is not an
// error; variables already set win.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Parse builds a Config from command line args. Every flag defaults to its
// environment variable.
func Parse(name string, args []string) (*Config, error) {
	fsFlags := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &Config{}

	tickTimeout, err := envDuration("TICK_TIMEOUT", 0)
	if err != nil {
		return nil, err
	}
	skipBuiltin, err := envBool("SKIP_BUILTIN_ROOMS", false)
	if err != nil {
		return nil, err
	}
	deadlockDetect, err := envBool("DEADLOCK_DETECT", true)
	if err != nil {
		return nil, err
	}

	fsFlags.StringVar(&c.GameAddr, "game-addr", envString("GAME_ADDR", ":3001"), "TCP address game clients connect to")
	fsFlags.StringVar(&c.HTTPAddr, "http-addr", envString("HTTP_ADDR", ":8080"), "HTTP address for the admin API and /ws/play")
	fsFlags.DurationVar(&c.TickTimeout, "tick-timeout", tickTimeout, "how long a player may take per tick (0 waits forever)")
	fsFlags.StringVar(&c.LogLevel, "log-level", envString("LOG_LEVEL", "INFO"), "log level (DEBUG, INFO, WARN, ERROR)")
	fsFlags.StringVar(&c.LogFile, "log-file", envString("LOG_FILE", ""), "log file path (optional)")
	fsFlags.StringVar(&c.LayoutDir, "layouts", envString("LAYOUT_DIR", ""), "directory of extra *.txt room layouts")
	fsFlags.BoolVar(&c.SkipBuiltin, "no-builtin", skipBuiltin, "do not create the built-in rooms")
	fsFlags.StringVar(&c.RedisAddr, "redis", envString("REDIS_ADDR", ""), "redis address for game results (optional)")
	fsFlags.StringVar(&c.RedisKey, "redis-key", envString("REDIS_KEY", "snakearena:results"), "redis list holding recent results")
	fsFlags.StringVar(&c.RedisChannel, "redis-channel", envString("REDIS_CHANNEL", "snakearena:finished"), "redis channel finished games are published on")
	fsFlags.BoolVar(&c.DeadlockDetect, "deadlock-detect", deadlockDetect, "report lock order violations at runtime")

	if err := fsFlags.Parse(args); err != nil {
		return nil, err
	}
	if c.TickTimeout < 0 {
		return nil, fmt.Errorf("tick-timeout must not be negative, got %v", c.TickTimeout)
	}
	if c.SkipBuiltin && c.LayoutDir == "" {
		return nil, errors.New("no rooms: -no-builtin needs -layouts")
	}
	return c, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
