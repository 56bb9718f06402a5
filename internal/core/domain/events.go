package domain

import "time"

// UnificationEventType совпадает с ключом маршрутизации в RabbitMQ
type UnificationEventType string

const (
	EventUnifiedCreated       UnificationEventType = "unified.created"
	EventUnifiedRebuilt       UnificationEventType = "unified.rebuilt"
	EventUnifiedUpdated       UnificationEventType = "unified.updated"
	EventFutureProjectCreated UnificationEventType = "future_project.created"
	EventFutureProjectDeleted UnificationEventType = "future_project.deleted"
)

// UnificationEvent - уведомление потребителей каталога об изменении unified_houses
type UnificationEvent struct {
	Type        UnificationEventType `json:"type"`
	CanonicalID string               `json:"canonical_id"`
	SourceIDs   SourceIDs            `json:"source_ids"`
	Name        string               `json:"name"`
	IsFuture    bool                 `json:"is_future"`
	OccurredAt  time.Time            `json:"occurred_at"`
}

func NewUnificationEvent(t UnificationEventType, rec *CanonicalRecord, at time.Time) UnificationEvent {
	return UnificationEvent{
		Type:        t,
		CanonicalID: rec.ID,
		SourceIDs:   rec.SourceIDs,
		Name:        rec.Development.Name,
		IsFuture:    rec.IsFuture,
		OccurredAt:  at.UTC(),
	}
}

// MatchRequest - запрос на автоматический матчинг одной пробы
type MatchRequest struct {
	ProbeKind SourceKind `json:"probe_kind"`
	ProbeID   string     `json:"probe_id"`
}

// MergeRequest - ручное слияние из админки
type MergeRequest struct {
	DomRFID    string
	AvitoID    string
	DomClickID string
	// Latitude/Longitude - строки оператора, допускается запятая
	Latitude   string
	Longitude  string
	AgentID    *string
	IsFeatured bool
}

func (r MergeRequest) SourceIDs() SourceIDs {
	var ids SourceIDs
	ids.Set(KindDomRF, r.DomRFID)
	ids.Set(KindAvito, r.AvitoID)
	ids.Set(KindDomClick, r.DomClickID)
	return ids
}

// FutureProjectRequest - создание будущего проекта по записи DomRF
type FutureProjectRequest struct {
	DomRFID   string
	Latitude  string
	Longitude string
	Name      string
	AgentID   *string
	// AllowMissingCoordinates ослабляет требование координат
	AllowMissingCoordinates bool
}

// SourceQuery - выборка доступных записей источника
type SourceQuery struct {
	// Search - подстрока названия без учета регистра
	Search string
	Limit  int
	// ExcludeFuture исключает записи с future_project_id
	ExcludeFuture bool
}

// FloorMaintenanceStats - отчет обслуживания этажей
type FloorMaintenanceStats struct {
	Complexes         int `json:"complexes"`
	Apartments        int `json:"apartments"`
	ApartmentsUpdated int `json:"apartments_updated"`
	ComplexesUpdated  int `json:"complexes_updated"`
}

// RebuildStats - отчет массовой пересборки
type RebuildStats struct {
	Total   int `json:"total"`
	Rebuilt int `json:"rebuilt"`
	Failed  int `json:"failed"`
}

// ReconcileStats - отчет сверки обратных ссылок
type ReconcileStats struct {
	Canonicals int `json:"canonicals"`
	Checked    int `json:"checked"`
	Repaired   int `json:"repaired"`
	Missing    int `json:"missing"`
	Failed     int `json:"failed"`
}

// RefreshNamesStats - отчет пересчета normalized_name
type RefreshNamesStats struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
}
