// Bufgrind CLI - drives dm-bufio stress scenarios against a test device
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/bufgrind/device"
	"github.com/chazu/bufgrind/manifest"
	"github.com/chazu/bufgrind/results"
	"github.com/chazu/bufgrind/scenario"
)

func main() {
	configDir := flag.String("config", "", "Directory containing bufgrind.toml (default: search upward from cwd)")
	devPath := flag.String("dev", "", "Test device path (overrides the manifest)")
	list := flag.Bool("list", false, "List registered scenarios and exit")
	verbose := flag.Int("v", 0, "Log verbosity (0 = notice, 1 = info, 2 = debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bufgrind [options] [scenarios...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs dm-bufio stress scenarios against the configured test device.\n")
		fmt.Fprintf(os.Stderr, "With no scenarios given, runs every registered scenario.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bufgrind -list                        # Show available scenarios\n")
		fmt.Fprintf(os.Stderr, "  bufgrind -dev /dev/mapper/bufio-test  # Run everything\n")
		fmt.Fprintf(os.Stderr, "  bufgrind /bufio/stamper               # Run one scenario\n")
		fmt.Fprintf(os.Stderr, "  bufgrind -v 2 /bufio/new-buf          # Dump submitted programs\n")
	}
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	if *list {
		for _, name := range scenario.Names() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *devPath != "" {
		cfg.Device.Path = *devPath
	}
	if cfg.Device.Path == "" {
		fmt.Fprintf(os.Stderr, "Error: no device configured: set device.path in bufgrind.toml or pass -dev\n")
		os.Exit(1)
	}

	names := flag.Args()
	if len(names) == 0 {
		names = scenario.Names()
	}
	for _, name := range names {
		if _, ok := scenario.Lookup(name); !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown scenario %s (use -list)\n", name)
			os.Exit(1)
		}
	}

	store, err := results.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	fix := &scenario.Fixture{
		Dev:     device.NewNode(cfg.Device.Path),
		Threads: cfg.Run.Threads,
		Gets:    cfg.Run.Gets,
		Blocks:  cfg.Run.Blocks,
	}

	failed := 0
	for _, name := range names {
		fn, _ := scenario.Lookup(name)
		rep, runErr := fn(fix)
		if rep != nil {
			if err := store.Record(name, rep, runErr); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cannot record %s: %v\n", name, err)
			}
		}
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s: %v\n", name, runErr)
			failed++
			continue
		}
		elapsed := rep.Finished.Sub(rep.Started).Round(time.Millisecond)
		fmt.Printf("PASS %s (%d programs in %s)\n", name, len(rep.Programs), elapsed)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// loadConfig resolves the manifest: an explicit -config directory, the
// nearest bufgrind.toml above the working directory, or built-in defaults.
func loadConfig(dir string) (*manifest.Config, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = manifest.Default()
	}
	return cfg, nil
}
