package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

var (
	acceptAnswers    = []string{"да", "д", "yes", "y", ""}
	rejectAnswers    = []string{"нет", "н", "no", "n", "skip", "пропустить"}
	stopAnswers      = []string{"пропустить все", "skip all", "stop", "q"}
	processedAnswers = []string{"обработано", "processed"}
)

// InteractiveDecider задает оператору вопрос по каждому виду кандидатов
type InteractiveDecider struct {
	in  *bufio.Scanner
	out io.Writer
}

var _ port.MatchDeciderPort = (*InteractiveDecider)(nil)

func NewInteractiveDecider(in io.Reader, out io.Writer) *InteractiveDecider {
	return &InteractiveDecider{in: bufio.NewScanner(in), out: out}
}

func (d *InteractiveDecider) Decide(ctx context.Context, p domain.Proposal) (domain.Decision, error) {
	d.printProposal(p)
	canProcess := p.Probe != nil && p.Probe.Kind == domain.KindDomRF

	for {
		if err := ctx.Err(); err != nil {
			return domain.Decision{Action: domain.DecisionStop, Reason: "cancelled"}, nil
		}
		d.prompt(len(p.Candidates), canProcess)

		if !d.in.Scan() {
			if err := d.in.Err(); err != nil {
				return domain.Decision{}, fmt.Errorf("read answer: %w", err)
			}
			// ввод закончился
			return domain.Decision{Action: domain.DecisionStop, Reason: "end of input"}, nil
		}

		decision, ok := parseAnswer(d.in.Text(), len(p.Candidates), canProcess)
		if ok {
			return decision, nil
		}
		fmt.Fprintln(d.out, "Не понял ответ, попробуйте еще раз.")
	}
}

func (d *InteractiveDecider) printProposal(p domain.Proposal) {
	if p.Probe != nil {
		fmt.Fprintf(d.out, "\n[%s] %s: %s\n", p.Probe.Kind, p.Probe.ID, p.Probe.DisplayName())
	}
	fmt.Fprintf(d.out, "Кандидаты %s:\n", p.Kind)
	for i, c := range p.Candidates {
		distance := "нет координат"
		if c.DistanceMeters >= 0 {
			distance = fmt.Sprintf("%.0f м", c.DistanceMeters)
		}
		fmt.Fprintf(d.out, "  %d. %s (%s) score=%.2f, %s\n", i+1, c.DisplayName, c.SourceID, c.Score, distance)
	}
}

func (d *InteractiveDecider) prompt(n int, canProcess bool) {
	var b strings.Builder
	if n == 1 {
		b.WriteString("Объединить? [да/нет/пропустить все")
	} else {
		fmt.Fprintf(&b, "Номер кандидата 1-%d, 0 - ни один [нет/пропустить все", n)
	}
	if canProcess {
		b.WriteString("/обработано")
	}
	b.WriteString("]: ")
	fmt.Fprint(d.out, b.String())
}

// parseAnswer: false, если ответ не распознан
func parseAnswer(raw string, n int, canProcess bool) (domain.Decision, bool) {
	answer := strings.ToLower(strings.Join(strings.Fields(raw), " "))

	switch {
	case contains(stopAnswers, answer):
		return domain.Decision{Action: domain.DecisionStop, Reason: "stopped by operator"}, true
	case contains(rejectAnswers, answer):
		return domain.Decision{Action: domain.DecisionReject, Reason: "rejected by operator"}, true
	case canProcess && contains(processedAnswers, answer):
		return domain.Decision{Action: domain.DecisionMarkProcessed, Reason: "marked processed by operator"}, true
	}

	if n == 1 && contains(acceptAnswers, answer) {
		return domain.Decision{Action: domain.DecisionAccept, Index: 0}, true
	}
	if num, err := strconv.Atoi(answer); err == nil {
		switch {
		case num == 0:
			return domain.Decision{Action: domain.DecisionReject, Reason: "rejected by operator"}, true
		case num >= 1 && num <= n:
			return domain.Decision{Action: domain.DecisionAccept, Index: num - 1}, true
		}
	}
	return domain.Decision{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
