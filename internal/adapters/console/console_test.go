package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/core/domain"
)

func candidates(scores ...float64) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(scores))
	for i, s := range scores {
		out = append(out, domain.Candidate{Kind: domain.KindDomRF, SourceID: string(rune('A' + i)), Score: s, DistanceMeters: -1})
	}
	return out
}

func TestBatchDecider(t *testing.T) {
	d := NewBatchDecider(0.85)
	ctx := context.Background()

	tests := []struct {
		name   string
		scores []float64
		want   domain.DecisionAction
	}{
		{"single above half threshold", []float64{0.5}, domain.DecisionAccept},
		{"single below half threshold", []float64{0.3}, domain.DecisionReject},
		{"clear leader", []float64{0.95, 0.7}, domain.DecisionAccept},
		{"leader too close", []float64{0.95, 0.92}, domain.DecisionReject},
		{"leader below threshold", []float64{0.8, 0.4}, domain.DecisionReject},
		{"nothing", nil, domain.DecisionReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Decide(ctx, domain.Proposal{Kind: domain.KindDomRF, Candidates: candidates(tt.scores...)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Action)
			if got.Action == domain.DecisionAccept {
				assert.Equal(t, 0, got.Index)
			}
		})
	}
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		raw        string
		n          int
		canProcess bool
		want       domain.DecisionAction
		index      int
		ok         bool
	}{
		{"да", 1, false, domain.DecisionAccept, 0, true},
		{"", 1, false, domain.DecisionAccept, 0, true},
		{" Y ", 1, false, domain.DecisionAccept, 0, true},
		{"нет", 1, false, domain.DecisionReject, 0, true},
		{"пропустить", 2, false, domain.DecisionReject, 0, true},
		{"Пропустить   все", 2, false, domain.DecisionStop, 0, true},
		{"q", 1, false, domain.DecisionStop, 0, true},
		{"2", 3, false, domain.DecisionAccept, 1, true},
		{"0", 3, false, domain.DecisionReject, 0, true},
		{"4", 3, false, "", 0, false},
		{"да", 3, false, "", 0, false},
		{"обработано", 1, true, domain.DecisionMarkProcessed, 0, true},
		{"обработано", 1, false, "", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseAnswer(tt.raw, tt.n, tt.canProcess)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got.Action, tt.raw)
		assert.Equal(t, tt.index, got.Index, tt.raw)
	}
}

func TestInteractiveDecider(t *testing.T) {
	probe := &domain.SourceRecord{Kind: domain.KindAvito, ID: "A1", Avito: &domain.AvitoPayload{Development: domain.AvitoDevelopment{Name: "Greenwich"}}}
	proposal := domain.Proposal{Probe: probe, Kind: domain.KindDomRF, Candidates: []domain.Candidate{
		{Kind: domain.KindDomRF, SourceID: "D1", DisplayName: "ЖК «Greenwich»", Score: 1, DistanceMeters: 120},
		{Kind: domain.KindDomRF, SourceID: "D2", DisplayName: "Greenwich Park", Score: 0.8, DistanceMeters: -1},
	}}

	var out bytes.Buffer
	d := NewInteractiveDecider(strings.NewReader("может быть\n2\n"), &out)
	got, err := d.Decide(context.Background(), proposal)
	require.NoError(t, err)
	assert.Equal(t, domain.Decision{Action: domain.DecisionAccept, Index: 1}, got)
	assert.Contains(t, out.String(), "1. ЖК «Greenwich» (D1) score=1.00, 120 м")
	assert.Contains(t, out.String(), "нет координат")
	assert.Contains(t, out.String(), "Не понял ответ")

	d = NewInteractiveDecider(strings.NewReader(""), &out)
	got, err = d.Decide(context.Background(), proposal)
	require.NoError(t, err)
	assert.Equal(t, domain.DecisionStop, got.Action)
}

func TestReporter(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out)
	r.Outcome(domain.ProbeOutcome{Kind: domain.KindAvito, ID: "A1", Name: "Greenwich", Status: domain.ProbeCreated, CanonicalID: "U1"})
	r.Tally(domain.KindAvito, domain.Tally{Created: 1})

	assert.Contains(t, out.String(), `avito A1 "Greenwich": created -> U1`)
	assert.Contains(t, out.String(), "Итого по avito (1 проб): created=1")
}
