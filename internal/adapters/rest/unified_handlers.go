package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"unification-service/internal/contextkeys"
	"unification-service/internal/contracts"
	"unification-service/internal/core/port"
	"unification-service/internal/core/port/usecases_port"
)

type UnifiedHandler struct {
	getUnifiedUC    usecases_port.GetUnifiedUseCase
	updateUnifiedUC usecases_port.UpdateUnifiedUseCase
	rebuildUC       usecases_port.RebuildUseCase
	futureProjectUC usecases_port.FutureProjectUseCase
}

func NewUnifiedHandler(getUnifiedUC usecases_port.GetUnifiedUseCase,
	updateUnifiedUC usecases_port.UpdateUnifiedUseCase,
	rebuildUC usecases_port.RebuildUseCase,
	futureProjectUC usecases_port.FutureProjectUseCase) *UnifiedHandler {
	return &UnifiedHandler{
		getUnifiedUC:    getUnifiedUC,
		updateUnifiedUC: updateUnifiedUC,
		rebuildUC:       rebuildUC,
		futureProjectUC: futureProjectUC,
	}
}

// GetByID обрабатывает GET /api/v1/unified/{unifiedID}
func (h *UnifiedHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "unifiedID")

	rec, err := h.getUnifiedUC.GetByID(r.Context(), id)
	if err != nil {
		contextkeys.LoggerFromContext(r.Context()).Warn("Unified record lookup failed", port.Fields{"id": id, "error": err.Error()})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, rec)
}

// FindNear обрабатывает GET /api/v1/unified?near=lat,lon&limit=
func (h *UnifiedHandler) FindNear(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())

	near := r.URL.Query().Get("near")
	if near == "" {
		WriteJSONError(w, http.StatusBadRequest, "UnifiedHandler: empty near value")
		return
	}
	lat, lon, err := parseNear(near)
	if err != nil {
		logger.Warn("Invalid 'near' parameter", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "UnifiedHandler: "+err.Error())
		return
	}
	limit, err := GetLimitOrDefault(r)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "UnifiedHandler: invalid limit value")
		return
	}

	recs, err := h.getUnifiedUC.FindNear(r.Context(), lat, lon, limit)
	if err != nil {
		logger.Error("Use case failed", err, port.Fields{"handler": "FindNear"})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, recs)
}

// Update обрабатывает PATCH /api/v1/unified/{unifiedID}: плоский объект путей
func (h *UnifiedHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "unifiedID")
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "Update", "id": id})

	var patch map[string]any
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		logger.Warn("Invalid JSON body", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "UnifiedHandler: invalid JSON body")
		return
	}
	if err := contracts.Validate(contracts.CommandUnifiedUpdate, contracts.Version1, patch); err != nil {
		logger.Warn("Update payload rejected by schema", port.Fields{"error": err.Error()})
		WriteDomainError(w, err)
		return
	}

	rec, err := h.updateUnifiedUC.Update(r.Context(), id, patch)
	if err != nil {
		logger.Error("Use case failed", err, nil)
		WriteDomainError(w, err)
		return
	}
	logger.Info("Unified record updated", port.Fields{"paths": len(patch)})
	RespondWithJSON(w, http.StatusOK, rec)
}

// SetFeatured обрабатывает POST /api/v1/unified/{unifiedID}/featured
func (h *UnifiedHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "unifiedID")

	var dto FeaturedRequestDTO
	if err := decodeJSON(r, &dto); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "UnifiedHandler: "+err.Error())
		return
	}

	rec, err := h.updateUnifiedUC.SetFeatured(r.Context(), id, *dto.IsFeatured)
	if err != nil {
		contextkeys.LoggerFromContext(r.Context()).Error("Use case failed", err, port.Fields{"handler": "SetFeatured", "id": id})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, rec)
}

// Rebuild обрабатывает POST /api/v1/unified/{unifiedID}/rebuild
func (h *UnifiedHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "unifiedID")
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "Rebuild", "id": id})

	rec, err := h.rebuildUC.Rebuild(r.Context(), id)
	if err != nil {
		logger.Error("Use case failed", err, nil)
		WriteDomainError(w, err)
		return
	}
	logger.Info("Unified record rebuilt", nil)
	RespondWithJSON(w, http.StatusOK, rec)
}

// CreateFutureProject обрабатывает POST /api/v1/future-projects
func (h *UnifiedHandler) CreateFutureProject(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())

	var dto FutureProjectRequestDTO
	if err := decodeJSON(r, &dto); err != nil {
		logger.Warn("Invalid future project request", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "UnifiedHandler: "+err.Error())
		return
	}

	rec, err := h.futureProjectUC.Create(r.Context(), dto.toDomain())
	if err != nil {
		logger.Error("Use case failed", err, port.Fields{"handler": "CreateFutureProject", "domrf_id": dto.DomRFID})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, rec)
}

// DeleteFutureProject обрабатывает DELETE /api/v1/future-projects/{unifiedID}
func (h *UnifiedHandler) DeleteFutureProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "unifiedID")

	rec, err := h.futureProjectUC.Delete(r.Context(), id)
	if err != nil {
		contextkeys.LoggerFromContext(r.Context()).Error("Use case failed", err, port.Fields{"handler": "DeleteFutureProject", "id": id})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, rec)
}
