package usecase

import (
	"context"
	"fmt"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/extractors"
	"unification-service/internal/core/port"
)

// FloorMaintenanceUseCase - разовые проходы по этажам квартир всех каноник
type FloorMaintenanceUseCase struct {
	canonical port.CanonicalStorePort
	writer    *CanonicalWriter
}

func NewFloorMaintenanceUseCase(canonical port.CanonicalStorePort, writer *CanonicalWriter) *FloorMaintenanceUseCase {
	return &FloorMaintenanceUseCase{canonical: canonical, writer: writer}
}

func (uc *FloorMaintenanceUseCase) RepairLegacyFloors(ctx context.Context, dryRun bool) (domain.FloorMaintenanceStats, error) {
	return uc.walk(ctx, "RepairLegacyFloors", dryRun, extractors.RepairLegacyFloors)
}

func (uc *FloorMaintenanceUseCase) MigrateFloors(ctx context.Context, dryRun bool) (domain.FloorMaintenanceStats, error) {
	return uc.walk(ctx, "MigrateFloors", dryRun, extractors.FillFloorsFromTitle)
}

// walk применяет fix к каждой квартире; запись сохраняется, только если что-то изменилось
func (uc *FloorMaintenanceUseCase) walk(ctx context.Context, name string, dryRun bool, fix func(*domain.ApartmentFacet) bool) (domain.FloorMaintenanceStats, error) {
	var stats domain.FloorMaintenanceStats
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": name,
		"dry_run":  dryRun,
	})

	err := uc.canonical.ForEach(ctx, func(rec *domain.CanonicalRecord) error {
		stats.Complexes++
		changed := 0
		for key, group := range rec.ApartmentTypes {
			for i := range group.Apartments {
				stats.Apartments++
				if fix(&group.Apartments[i]) {
					changed++
				}
			}
			rec.ApartmentTypes[key] = group
		}
		if changed == 0 {
			return nil
		}

		stats.ApartmentsUpdated += changed
		stats.ComplexesUpdated++
		if dryRun {
			logger.Info("Would update apartments", port.Fields{"canonical_id": rec.ID, "apartments": changed})
			return nil
		}
		set := map[string]any{"apartment_types": rec.ApartmentTypes}
		if _, err := uc.writer.UpdateFields(ctx, rec.ID, set, domain.EventUnifiedUpdated); err != nil {
			return fmt.Errorf("save %s: %w", rec.ID, err)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("%s: %w", name, err)
	}

	logger.Info("Floor maintenance finished", port.Fields{
		"complexes":          stats.Complexes,
		"apartments":         stats.Apartments,
		"apartments_updated": stats.ApartmentsUpdated,
		"complexes_updated":  stats.ComplexesUpdated,
	})
	return stats, nil
}
