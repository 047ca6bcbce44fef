// Command wbcachedemo is a small command-line front end for wbcache, backed
// by a pebble database on disk. It mirrors cmd/geth's own shape: a
// urfave/cli app, a TOML config file loaded with naoina/toml, and
// automaxprocs wired in for its GOMAXPROCS side effect.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/coredao-org/wbcache"
	"github.com/coredao-org/wbcache/internal/pebblestore"
)

var (
	dbFlag = &cli.StringFlag{
		Name:  "db",
		Usage: "path to the pebble database directory",
		Value: "./wbcachedemo-data",
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to a TOML file with AccessTTL/PruneInterval",
	}
	watchFlag = &cli.BoolFlag{
		Name:  "watch-config",
		Usage: "reload AccessTTL/PruneInterval whenever --config changes on disk",
	}
)

func main() {
	app := &cli.App{
		Name:  "wbcachedemo",
		Usage: "exercise a write-back, single-flight cache over a pebble store",
		Flags: []cli.Flag{dbFlag, configFlag, watchFlag},
		Commands: []*cli.Command{
			getCommand,
			putCommand,
			evictCommand,
			drainCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "wbcachedemo:", err)
		os.Exit(1)
	}
}

// loadConfig loads a wbcache.Config from a TOML file, falling back to
// defaults if path is empty.
func loadConfig(path string) (wbcache.Config, error) {
	if path == "" {
		return wbcache.DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return wbcache.Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg wbcache.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return wbcache.Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// openCache wires up a pebble-backed Store and a Cache over it, applying
// --config and, if requested, watching it for live retuning.
func openCache(c *cli.Context) (*wbcache.Cache[string, []byte], *pebblestore.Store, func(), error) {
	store, err := pebblestore.Open(c.String(dbFlag.Name))
	if err != nil {
		return nil, nil, nil, err
	}

	cfg, err := loadConfig(c.String(configFlag.Name))
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}

	cache := wbcache.New[string, []byte]("demo", store, wbcache.WithAccessTTL(cfg.AccessTTL), wbcache.WithPruneInterval(cfg.PruneInterval))

	stopWatch := func() {}
	if c.Bool(watchFlag.Name) && c.String(configFlag.Name) != "" {
		stopWatch = watchConfig(c.String(configFlag.Name), cache)
	}

	cleanup := func() {
		stopWatch()
		cache.Close()
		store.Close()
	}
	return cache, store, cleanup, nil
}

// watchConfig reloads the config file on every fsnotify write event and
// applies it via Cache.Reconfigure, so a running demo process can be
// retuned without a restart. It returns a function that stops the watcher.
func watchConfig(path string, cache *wbcache.Cache[string, []byte]) func() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("config watch disabled", "err", err)
		return func() {}
	}
	if err := w.Add(path); err != nil {
		log.Warn("config watch disabled", "path", path, "err", err)
		w.Close()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := loadConfig(path)
				if err != nil {
					log.Warn("config reload failed", "err", err)
					continue
				}
				cache.Reconfigure(cfg)
				log.Info("config reloaded", "accessTTL", cfg.AccessTTL, "pruneInterval", cfg.PruneInterval)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("config watcher error", "err", err)
			}
		}
	}()

	return func() {
		w.Close()
		<-done
	}
}

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "read a key, fetching through to the store on a miss",
	ArgsUsage: "<key>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one key argument", 1)
		}
		cache, _, cleanup, err := openCache(c)
		if err != nil {
			return err
		}
		defer cleanup()

		h, err := cache.Get(context.Background(), c.Args().First())
		if err != nil {
			return err
		}
		defer h.Release()
		fmt.Println(string(h.Value()))
		return nil
	},
}

var putCommand = &cli.Command{
	Name:      "put",
	Usage:     "insert a key/value pair, winning any in-flight fetch on that key",
	ArgsUsage: "<key> <value>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return cli.Exit("expected exactly two arguments: key value", 1)
		}
		cache, _, cleanup, err := openCache(c)
		if err != nil {
			return err
		}
		defer cleanup()

		cache.Insert(c.Args().Get(0), []byte(c.Args().Get(1)))
		return nil
	},
}

var evictCommand = &cli.Command{
	Name:      "evict",
	Usage:     "attempt to reclaim a single key, flushing it to the store",
	ArgsUsage: "<key>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("expected exactly one key argument", 1)
		}
		cache, _, cleanup, err := openCache(c)
		if err != nil {
			return err
		}
		defer cleanup()

		if !cache.TryEvict(c.Args().First()) {
			return cli.Exit("key is pinned by a live handle; nothing evicted", 1)
		}
		return nil
	},
}

var drainCommand = &cli.Command{
	Name:  "drain",
	Usage: "reclaim every cached entry and wait for the store to observe every write",
	Action: func(c *cli.Context) error {
		cache, _, cleanup, err := openCache(c)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cache.EvictAllSync(ctx)
	},
}
