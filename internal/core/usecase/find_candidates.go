package usecase

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mozillazg/go-unidecode"
	"github.com/xrash/smetrics"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/normalizer"
	"unification-service/internal/core/port"
)

const (
	patternTokenMinLen = 3
	filterTokenMinLen  = 4
	proximityRadiusM   = 2000.0
	proximityWeight    = 0.1
)

// FindCandidatesUseCase - индекс кандидатов поверх трех коллекций и ранжирование
type FindCandidatesUseCase struct {
	sources port.SourceStorePort
}

func NewFindCandidatesUseCase(sources port.SourceStorePort) *FindCandidatesUseCase {
	return &FindCandidatesUseCase{sources: sources}
}

// Execute возвращает кандидатов по каждому из двух других видов, лучшие первыми
func (uc *FindCandidatesUseCase) Execute(ctx context.Context, probe *domain.SourceRecord) (map[domain.SourceKind][]domain.Candidate, error) {
	name := probe.DisplayName()
	normalized, err := normalizer.NormalizeProbe(name)
	if err != nil {
		return nil, err
	}

	out := make(map[domain.SourceKind][]domain.Candidate, 2)
	for _, kind := range probe.Kind.Others() {
		found, err := uc.Find(ctx, kind, name, normalized)
		if err != nil {
			return nil, fmt.Errorf("find %s candidates for %s %s: %w", kind, probe.Kind, probe.ID, err)
		}
		if len(found) > 0 {
			out[kind] = Rank(probe, found)
		}
	}
	return out, nil
}

// ForSource читает запись источника и возвращает ее вместе с кандидатами
func (uc *FindCandidatesUseCase) ForSource(ctx context.Context, kind domain.SourceKind, id string) (*domain.SourceRecord, map[domain.SourceKind][]domain.Candidate, error) {
	probe, err := uc.sources.Get(ctx, kind, id)
	if err != nil {
		return nil, nil, err
	}
	found, err := uc.Execute(ctx, probe)
	if err != nil {
		return probe, nil, err
	}
	return probe, found, nil
}

// Find применяет три стратегии по очереди до первой непустой и фильтрует по ключевым словам.
// Порядок записей стратегии сохраняется, повторы названий отбрасываются.
func (uc *FindCandidatesUseCase) Find(ctx context.Context, kind domain.SourceKind, name, normalized string) ([]*domain.SourceRecord, error) {
	if normalized == "" {
		return nil, nil
	}
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "FindCandidates",
		"kind":     string(kind),
		"probe":    normalized,
	})

	keyWords := normalizer.KeyWords(name)
	strategies := []struct {
		name  string
		query func() ([]*domain.SourceRecord, error)
	}{
		{"normalized_equal", func() ([]*domain.SourceRecord, error) {
			return uc.sources.FindByNormalizedName(ctx, kind, normalized)
		}},
		{"normalized_pattern", func() ([]*domain.SourceRecord, error) {
			pattern := tokenPattern(normalized)
			if pattern == "" {
				return nil, nil
			}
			return uc.sources.FindByNormalizedPattern(ctx, kind, pattern)
		}},
		{"display_pattern", func() ([]*domain.SourceRecord, error) {
			pattern := tokenPattern(keyWords)
			if pattern == "" {
				return nil, nil
			}
			return uc.sources.FindByDisplayPattern(ctx, kind, pattern)
		}},
	}

	for _, s := range strategies {
		found, err := s.query()
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.name, err)
		}
		found = dedupeByName(found)
		if len(found) == 0 {
			continue
		}
		filtered := filterByKeyWords(keyWords, found)
		logger.Debug("Candidates found", port.Fields{
			"strategy": s.name,
			"found":    len(found),
			"kept":     len(filtered),
		})
		return filtered, nil
	}
	return nil, nil
}

// tokenPattern: значимые токены через ".*"; пусто, если таких токенов нет
func tokenPattern(s string) string {
	var words []string
	for _, w := range strings.Fields(s) {
		if len([]rune(w)) >= patternTokenMinLen {
			words = append(words, regexp.QuoteMeta(w))
		}
	}
	return strings.Join(words, ".*")
}

func dedupeByName(recs []*domain.SourceRecord) []*domain.SourceRecord {
	seen := make(map[string]struct{}, len(recs))
	out := recs[:0:0]
	for _, rec := range recs {
		name := rec.DisplayName()
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// filterByKeyWords оставляет кандидатов с общим значимым токеном (4+ символа).
// Если у пробы значимых токенов нет, хватает любого общего токена.
// Если фильтр убрал всех, возвращаются все.
func filterByKeyWords(keyWords string, recs []*domain.SourceRecord) []*domain.SourceRecord {
	probeTokens := strings.Fields(keyWords)
	if len(probeTokens) == 0 {
		return recs
	}
	probeAll := toSet(probeTokens)
	probeSignificant := toSet(normalizer.SignificantTokens(keyWords, filterTokenMinLen))

	var kept []*domain.SourceRecord
	for _, rec := range recs {
		clean := normalizer.CleanDomRFName(rec.DisplayName())
		candAll := toSet(strings.Fields(clean))
		if len(candAll) == 0 {
			kept = append(kept, rec)
			continue
		}
		candSignificant := toSet(normalizer.SignificantTokens(clean, filterTokenMinLen))
		switch {
		case len(probeSignificant) > 0 && len(candSignificant) > 0:
			if intersects(probeSignificant, candSignificant) {
				kept = append(kept, rec)
			}
		case len(probeSignificant) == 0:
			if intersects(probeAll, candAll) {
				kept = append(kept, rec)
			}
		}
	}
	if len(kept) == 0 {
		return recs
	}
	return kept
}

func toSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}

func intersects(a, b map[string]struct{}) bool {
	for t := range a {
		if _, ok := b[t]; ok {
			return true
		}
	}
	return false
}

// Rank считает score кандидатов и сортирует по убыванию; при равенстве сохраняется порядок индекса
func Rank(probe *domain.SourceRecord, recs []*domain.SourceRecord) []domain.Candidate {
	probeName := normalizer.Normalize(probe.DisplayName())
	probeCoords := probe.Coordinates()

	out := make([]domain.Candidate, 0, len(recs))
	for _, rec := range recs {
		c := domain.Candidate{
			Kind:           rec.Kind,
			SourceID:       rec.ID,
			DisplayName:    rec.DisplayName(),
			DistanceMeters: -1,
		}
		c.Score = nameSimilarity(probeName, normalizer.Normalize(c.DisplayName))
		if cc := rec.Coordinates(); probeCoords != nil && cc != nil {
			c.DistanceMeters = domain.DistanceMeters(*probeCoords, *cc)
			c.Score += proximityBonus(c.DistanceMeters)
		}
		if c.Score > 1 {
			c.Score = 1
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// nameSimilarity: 0.7 Jaro-Winkler + 0.3 нормированный Левенштейн по транслиту
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	a, b = unaccent(a), unaccent(b)
	if a == b {
		return 1
	}
	jw := smetrics.JaroWinkler(a, b, 0.7, 4)
	ld := levenshtein.ComputeDistance(a, b)
	den := len(a)
	if len(b) > den {
		den = len(b)
	}
	return 0.7*jw + 0.3*(1-float64(ld)/float64(den))
}

func proximityBonus(d float64) float64 {
	if d < 0 || d >= proximityRadiusM {
		return 0
	}
	return proximityWeight * (1 - d/proximityRadiusM)
}

func unaccent(s string) string { return strings.ToLower(unidecode.Unidecode(s)) }
