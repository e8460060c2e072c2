// Command modlinkctl is a thin driver over the modlink engine: stage a
// directory of manifests into a LoadingSet, commit it, and report
// per-module outcomes, or inspect the live registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/arborlang/modlink/internal/engine"
	"github.com/arborlang/modlink/internal/export"
	"github.com/arborlang/modlink/internal/loadset"
	"github.com/arborlang/modlink/internal/modver"
	"github.com/arborlang/modlink/internal/source"
)

func main() {
	var command string

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	command = args[0]

	eng := engine.NewEngine(engine.BasicFactory{})

	ctx := context.Background()
	if _, err := eng.AddRootInstance(ctx, "root"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to bootstrap root instance: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "load":
		handleLoad(ctx, eng, args[1:])
	case "inspect":
		handleInspect(eng, args[1:])
	case "symbol":
		handleSymbol(eng, args[1:])
	case "prune":
		handlePrune(ctx, eng, args[1:])
	case "watch":
		handleWatch(ctx, eng, args[1:])
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`modlinkctl - modlink module loader driver

Usage: modlinkctl <command> [args...]

Commands:
  load <dir>                  Stage every manifest under dir and commit
  inspect <name>               Print the registered instance named name
  symbol <name> <ns> <version> Resolve a compatible symbol and its owner
  prune                        Unload every unreferenced non-root instance
  watch <dir>                  Watch dir and commit each newly written manifest
  help                         Show this help

Examples:
  modlinkctl load ./modules
  modlinkctl inspect auth
  modlinkctl symbol sym1 nsA 2.3.0
  modlinkctl prune
  modlinkctl watch ./modules
`)
}

func handleLoad(ctx context.Context, eng *engine.Engine, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: directory required\n")
		fmt.Fprintf(os.Stderr, "Usage: modlinkctl load <dir>\n")
		os.Exit(1)
	}

	dir := args[0]

	set := eng.NewLoadingSet()
	defer set.Close()

	loadAll := func(export.Descriptor) loadset.FilterDecision { return loadset.FilterLoad }

	if err := set.AddModulesFromPath(ctx, dir, loadAll, engineCompatible); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to stage manifests from %s: %v\n", dir, err)
		os.Exit(1)
	}

	reportOutcomes(set)

	if _, err := set.Commit(ctx).Wait(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: commit failed: %v\n", err)
		os.Exit(1)
	}
}

// reportOutcomes registers a callback on every module currently staged in
// set so load/watch can print the per-module terminal status as each one
// is decided, before the commit future itself resolves.
func reportOutcomes(set *loadset.Set) {
	for _, name := range set.Names() {
		name := name

		_ = set.AddCallback(name,
			func(info *loadset.ModuleInfo) {
				fmt.Printf("  %s: loaded\n", info.Name)
			},
			func(exp export.Descriptor) {
				fmt.Printf("  %s: error\n", exp.Name)
			},
			nil,
		)
	}
}

func handleInspect(eng *engine.Engine, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: instance name required\n")
		fmt.Fprintf(os.Stderr, "Usage: modlinkctl inspect <name>\n")
		os.Exit(1)
	}

	name := args[0]

	h, ok := eng.FindInstanceByName(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no instance named %q is registered\n", name)
		os.Exit(1)
	}

	fmt.Printf("%s: state=%s strong=%d dependents=%d\n", h.Name(), h.State(), h.StrongCount(), h.DependentsCount())
}

func handleSymbol(eng *engine.Engine, args []string) {
	if len(args) != 3 {
		fmt.Fprintf(os.Stderr, "Error: name, namespace, and version required\n")
		fmt.Fprintf(os.Stderr, "Usage: modlinkctl symbol <name> <ns> <version>\n")
		os.Exit(1)
	}

	v, err := modver.Parse(args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid version %q: %v\n", args[2], err)
		os.Exit(1)
	}

	h, ok := eng.FindInstanceBySymbol(args[0], args[1], v)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: no compatible symbol %s::%s@%s is registered\n", args[1], args[0], v)
		os.Exit(1)
	}

	fmt.Printf("%s::%s@%s -> %s\n", args[1], args[0], v, h.Name())
}

func handlePrune(ctx context.Context, eng *engine.Engine, _ []string) {
	if err := eng.PruneInstances(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: prune failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Pruned unreferenced instances")
}

func handleWatch(ctx context.Context, eng *engine.Engine, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: directory required\n")
		fmt.Fprintf(os.Stderr, "Usage: modlinkctl watch <dir>\n")
		os.Exit(1)
	}

	w, err := source.NewDirWatcher(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to watch %s: %v\n", args[0], err)
		os.Exit(1)
	}
	defer w.Close()

	fmt.Printf("Watching %s for new manifests (Ctrl-C to stop)...\n", args[0])

	for {
		select {
		case d, ok := <-w.Events():
			if !ok {
				return
			}

			set := eng.NewLoadingSet()

			if err := set.AddModule(loadset.NoopHandle, loadset.NoopHandle, d, engineCompatible); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to stage %s: %v\n", d.Name, err)
				set.Close()

				continue
			}

			reportOutcomes(set)

			if _, err := set.Commit(ctx).Wait(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error: commit failed for %s: %v\n", d.Name, err)
			}

			set.Close()
		case err, ok := <-w.Errors():
			if !ok {
				return
			}

			fmt.Fprintf(os.Stderr, "Error: watcher: %v\n", err)
		}
	}
}

// engineCompatible is the engine's own context-version compatibility
// check (ExportValidator rule 2): modlinkctl runs context version 1.x.
func engineCompatible(requested modver.Version) bool {
	return requested.Major == 1
}
