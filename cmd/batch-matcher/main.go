// batch-matcher прогоняет автоматический матчинг по всем доступным пробам вида
// и печатает строку статуса на каждую пробу и итоговую сводку.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"unification-service/internal"
	"unification-service/internal/adapters/console"
	"unification-service/internal/constants"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

func main() {
	kindFlag := flag.String("kind", string(domain.KindAvito), "вид проб: domrf, avito, domclick")
	threshold := flag.Float64("threshold", 0, "порог автоматического принятия; 0 - MATCH_AUTO_ACCEPT_SCORE")
	envPath := flag.String("env", "", "путь к .env")
	flag.Parse()

	kind, err := domain.ParseSourceKind(*kindFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -kind: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := internal.NewRuntime(ctx, internal.RuntimeOptions{EnvPath: *envPath, Component: "batch_matcher"})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	events, err := rt.Events()
	if err != nil {
		rt.Close()
		log.Fatalf("Failed to initialize events publisher: %v", err)
	}

	if *threshold <= 0 {
		*threshold = rt.Config.Matching.AutoAcceptScore
	}
	ctx = contextkeys.ContextWithLogger(ctx, rt.Logger)
	rt.Logger.Info("Batch matching started", port.Fields{"probe_kind": string(kind), "threshold": *threshold})

	reporter := console.NewReporter(os.Stdout)
	matcher := rt.MatchProbeUseCase(rt.Writer(events), constants.CreatedByAutoMatcher)
	tally, err := matcher.Run(ctx, kind, console.NewBatchDecider(*threshold), reporter.Outcome)
	reporter.Tally(kind, tally)
	if err != nil {
		rt.Logger.Error("Batch matching aborted", err, nil)
		rt.Close()
		os.Exit(1)
	}
}
