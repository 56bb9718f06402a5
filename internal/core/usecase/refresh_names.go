package usecase

import (
	"context"
	"fmt"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/normalizer"
	"unification-service/internal/core/port"
)

const refreshBatchSize = 500

type RefreshNormalizedNamesUseCase struct {
	store     port.NormalizedNameStorePort
	normalize func(string) string
}

func NewRefreshNormalizedNamesUseCase(store port.NormalizedNameStorePort) *RefreshNormalizedNamesUseCase {
	return &RefreshNormalizedNamesUseCase{store: store, normalize: normalizer.Normalize}
}

func (uc *RefreshNormalizedNamesUseCase) Execute(ctx context.Context, dryRun bool) (domain.RefreshNamesStats, error) {
	var stats domain.RefreshNamesStats
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "RefreshNormalizedNames",
		"dry_run":  dryRun,
	})

	for _, kind := range domain.AllSourceKinds {
		pending := make(map[string]string, refreshBatchSize)
		flush := func() error {
			if len(pending) == 0 {
				return nil
			}
			if dryRun {
				stats.Changed += len(pending)
			} else {
				n, err := uc.store.SetNormalizedNames(ctx, kind, pending)
				if err != nil {
					return fmt.Errorf("save %s names: %w", kind, err)
				}
				stats.Changed += n
			}
			pending = make(map[string]string, refreshBatchSize)
			return nil
		}

		err := uc.store.ScanNames(ctx, kind, func(id, displayName, normalized string) error {
			stats.Scanned++
			fresh := uc.normalize(displayName)
			if fresh == normalized {
				return nil
			}
			pending[id] = fresh
			if len(pending) >= refreshBatchSize {
				return flush()
			}
			return nil
		})
		if err == nil {
			err = flush()
		}
		if err != nil {
			return stats, fmt.Errorf("RefreshNormalizedNames: %w", err)
		}
		logger.Info("Kind refreshed", port.Fields{"kind": string(kind), "scanned": stats.Scanned, "changed": stats.Changed})
	}
	return stats, nil
}
