package usecases_port

import (
	"context"

	"unification-service/internal/core/domain"
)

type FloorMaintenanceUseCase interface {
	// RepairLegacyFloors исправляет ошибочно прочитанный диапазон (1, X)
	RepairLegacyFloors(ctx context.Context, dryRun bool) (domain.FloorMaintenanceStats, error)
	// MigrateFloors заполняет пустые floorMin/floorMax из заголовков
	MigrateFloors(ctx context.Context, dryRun bool) (domain.FloorMaintenanceStats, error)
}

type ReconcileBackRefsUseCase interface {
	Execute(ctx context.Context, dryRun bool) (domain.ReconcileStats, error)
}

// RefreshNormalizedNamesUseCase пересчитывает normalized_name всех источников текущим нормализатором
type RefreshNormalizedNamesUseCase interface {
	Execute(ctx context.Context, dryRun bool) (domain.RefreshNamesStats, error)
}
