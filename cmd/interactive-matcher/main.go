// interactive-matcher показывает оператору кандидатов по каждой пробе и спрашивает решение.
// Логи идут в stderr, диалог - в stdout.
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
)

const usage = `Ответы: да/д/enter - принять, нет/н - пропустить пробу, номер - выбрать кандидата,
обработано - отметить ЖК ДОМ.РФ обработанным без слияния, пропустить все/q - закончить.`

func main() {
	kindFlag := flag.String("kind", string(domain.KindAvito), "вид проб: domrf, avito, domclick")
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

	rt, err := internal.NewRuntime(ctx, internal.RuntimeOptions{
		EnvPath:   *envPath,
		LogWriter: os.Stderr,
		Component: "interactive_matcher",
	})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer rt.Close()

	events, err := rt.Events()
	if err != nil {
		rt.Close()
		log.Fatalf("Failed to initialize events publisher: %v", err)
	}
	ctx = contextkeys.ContextWithLogger(ctx, rt.Logger)

	fmt.Fprintln(os.Stdout, usage)

	reporter := console.NewReporter(os.Stdout)
	matcher := rt.MatchProbeUseCase(rt.Writer(events), constants.CreatedByScript)
	tally, err := matcher.Run(ctx, kind, console.NewInteractiveDecider(os.Stdin, os.Stdout), reporter.Outcome)
	reporter.Tally(kind, tally)
	if err != nil && ctx.Err() == nil {
		rt.Logger.Error("Interactive matching aborted", err, nil)
		rt.Close()
		os.Exit(1)
	}
}
