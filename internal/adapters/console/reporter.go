package console

import (
	"fmt"
	"io"

	"unification-service/internal/core/domain"
)

// Reporter печатает строку статуса по каждой пробе и итоговую сводку прогона
type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

func (r *Reporter) Outcome(o domain.ProbeOutcome) {
	fmt.Fprintln(r.out, o.String())
}

func (r *Reporter) Tally(kind domain.SourceKind, t domain.Tally) {
	fmt.Fprintf(r.out, "\nИтого по %s (%d проб): %s\n", kind, t.Total(), t.String())
}
