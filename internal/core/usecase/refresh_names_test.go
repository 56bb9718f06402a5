package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/core/domain"
)

func TestRefreshNormalizedNames(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.put(t, domain.KindDomRF, "D1", domrfGreenwich)
	e.put(t, domain.KindAvito, "A1", avitoGreenwich)

	stale := e.source(t, domain.KindAvito, "A1")
	stale.NormalizedName = "устаревшее"
	require.NoError(t, e.sources.PutSource(stale))

	uc := NewRefreshNormalizedNamesUseCase(e.sources)

	stats, err := uc.Execute(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshNamesStats{Scanned: 2, Changed: 1}, stats)
	assert.Equal(t, "устаревшее", e.source(t, domain.KindAvito, "A1").NormalizedName)

	stats, err = uc.Execute(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Changed)
	assert.Equal(t, "greenwich", e.source(t, domain.KindAvito, "A1").NormalizedName)

	stats, err = uc.Execute(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Changed)
}
