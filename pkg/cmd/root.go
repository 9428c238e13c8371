// Package cmd wires the provider layer into the modm command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"modm/pkg/blobcache"
	"modm/pkg/cache"
	"modm/pkg/config"
	"modm/pkg/display"
	"modm/pkg/provider"
	"modm/pkg/provider/file"
	"modm/pkg/provider/modio"
	"modm/pkg/provider/script"
	"modm/pkg/provider/web"
)

// app is the assembled state every subcommand works against.
type app struct {
	cfg   *config.Config
	cache *cache.Cache
	blobs *blobcache.Cache
	store *provider.Store
	disp  display.Display
}

var (
	flagRoot    string
	flagVerbose bool
	flagUpdate  bool
)

// Execute runs the CLI and returns its process exit code.
func Execute() int {
	a := &app{}

	root := &cobra.Command{
		Use:           "modm",
		Short:         "Resolve and fetch mods from pluggable sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			// Providers only stage cache changes; persisting is ours.
			return a.cache.Save()
		},
	}
	root.PersistentFlags().StringVar(&flagRoot, "root", "", "override the base directory for cache, config and state")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVarP(&flagUpdate, "update", "u", false, "consult the authoritative source even when the cache could answer")

	root.AddCommand(
		newResolveCmd(a),
		newFetchCmd(a),
		newInfoCmd(a),
		newUpdateCmd(a),
		newCheckCmd(a),
		newProvidersCmd(a),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if id, ok := provider.OptModID(err); ok {
			fmt.Fprintf(os.Stderr, "(mod id %d)\n", id)
		}
		return 1
	}
	return 0
}

// setup assembles config, caches, registry and the provider store.
func (a *app) setup() error {
	if flagRoot != "" {
		a.cfg = config.InitAt(flagRoot)
	} else {
		a.cfg = config.Init()
	}

	a.disp = display.NewConsole()
	a.disp.SetVerbose(flagVerbose)
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	reg := provider.NewRegistry()
	file.Register(reg)
	web.Register(reg)
	modio.Register(reg)
	if err := script.Load(a.cfg.GetScriptDir(), reg); err != nil {
		return err
	}

	params, err := a.cfg.LoadParams()
	if err != nil {
		return err
	}
	a.store = provider.NewStore(reg, params)
	a.blobs = blobcache.New(a.cfg.GetBlobDir())
	a.cache = cache.Open(a.cfg.GetCacheFile())
	// Warm the handle now so the cache-only accessors stay I/O free.
	if _, err := a.cache.Generation(); err != nil {
		return err
	}
	return nil
}

func specs(args []string) []provider.ModSpecification {
	out := make([]provider.ModSpecification, len(args))
	for i, arg := range args {
		out[i] = provider.NewSpec(arg)
	}
	return out
}
