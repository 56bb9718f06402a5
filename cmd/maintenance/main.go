// maintenance - разовые операции над unified_houses и источниками.
//
//	maintenance force-rebuild-all
//	maintenance repair-floors [-dry-run]
//	maintenance migrate-floors [-dry-run]
//	maintenance reconcile-backrefs [-dry-run]
//	maintenance refresh-normalized [-dry-run]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"unification-service/internal"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/port"
	"unification-service/internal/core/usecase"
)

type command struct {
	help        string
	dryRunnable bool
	run         func(ctx context.Context, rt *internal.Runtime, events port.UnificationEventsPort, dryRun bool) (any, error)
}

var commands = map[string]command{
	"force-rebuild-all": {
		help: "пересобрать все канонические записи из источников",
		run: func(ctx context.Context, rt *internal.Runtime, events port.UnificationEventsPort, _ bool) (any, error) {
			return usecase.NewRebuildUseCase(rt.Sources, rt.Canonical, rt.Merger, rt.Writer(events)).RebuildAll(ctx)
		},
	},
	"repair-floors": {
		help:        "исправить этажи, ошибочно прочитанные как диапазон (1, X)",
		dryRunnable: true,
		run: func(ctx context.Context, rt *internal.Runtime, events port.UnificationEventsPort, dryRun bool) (any, error) {
			return usecase.NewFloorMaintenanceUseCase(rt.Canonical, rt.Writer(events)).RepairLegacyFloors(ctx, dryRun)
		},
	},
	"migrate-floors": {
		help:        "заполнить пустые floorMin/floorMax из заголовков квартир",
		dryRunnable: true,
		run: func(ctx context.Context, rt *internal.Runtime, events port.UnificationEventsPort, dryRun bool) (any, error) {
			return usecase.NewFloorMaintenanceUseCase(rt.Canonical, rt.Writer(events)).MigrateFloors(ctx, dryRun)
		},
	},
	"reconcile-backrefs": {
		help:        "восстановить флаги источников по _source_ids канонических записей",
		dryRunnable: true,
		run: func(ctx context.Context, rt *internal.Runtime, _ port.UnificationEventsPort, dryRun bool) (any, error) {
			return usecase.NewReconcileBackRefsUseCase(rt.Sources, rt.Canonical, rt.Metrics).Execute(ctx, dryRun)
		},
	},
	"refresh-normalized": {
		help:        "пересчитать normalized_name всех источников",
		dryRunnable: true,
		run: func(ctx context.Context, rt *internal.Runtime, _ port.UnificationEventsPort, dryRun bool) (any, error) {
			return usecase.NewRefreshNormalizedNamesUseCase(rt.Sources).Execute(ctx, dryRun)
		},
	},
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "usage: maintenance <command> [-dry-run] [-env path]")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-20s %s\n", name, commands[name].help)
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}
	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		printUsage()
		os.Exit(2)
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "только посчитать изменения, ничего не записывать")
	envPath := fs.String("env", "", "путь к .env")
	fs.Parse(os.Args[2:])

	if *dryRun && !cmd.dryRunnable {
		fmt.Fprintf(os.Stderr, "%s does not support -dry-run\n", name)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := internal.NewRuntime(ctx, internal.RuntimeOptions{EnvPath: *envPath, Component: "maintenance"})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	var events port.UnificationEventsPort
	if !*dryRun {
		if events, err = rt.Events(); err != nil {
			rt.Close()
			log.Fatalf("Failed to initialize events publisher: %v", err)
		}
	}

	logger := rt.Logger.WithFields(port.Fields{"command": name, "dry_run": *dryRun})
	ctx = contextkeys.ContextWithLogger(ctx, logger)
	logger.Info("Maintenance command started", nil)

	stats, err := cmd.run(ctx, rt, events, *dryRun)
	if stats != nil {
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		logger.Error("Maintenance command failed", err, nil)
		rt.Close()
		os.Exit(1)
	}
	logger.Info("Maintenance command finished", nil)
}
