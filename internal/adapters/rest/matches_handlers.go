package rest

import (
	"net/http"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
	"unification-service/internal/core/port/usecases_port"
)

// MatchesHandler - ручное слияние, очередь несопоставленных и просмотр кандидатов
type MatchesHandler struct {
	manualMergeUC   usecases_port.ManualMergeUseCase
	listUnmatchedUC usecases_port.ListUnmatchedUseCase
	candidatesUC    usecases_port.FindCandidatesUseCase
}

func NewMatchesHandler(manualMergeUC usecases_port.ManualMergeUseCase,
	listUnmatchedUC usecases_port.ListUnmatchedUseCase,
	candidatesUC usecases_port.FindCandidatesUseCase) *MatchesHandler {
	return &MatchesHandler{
		manualMergeUC:   manualMergeUC,
		listUnmatchedUC: listUnmatchedUC,
		candidatesUC:    candidatesUC,
	}
}

// Merge обрабатывает POST /api/v1/matches
func (h *MatchesHandler) Merge(w http.ResponseWriter, r *http.Request) {
	h.merge(w, r, false)
}

// Preview обрабатывает POST /api/v1/matches/preview: результат слияния без записи
func (h *MatchesHandler) Preview(w http.ResponseWriter, r *http.Request) {
	h.merge(w, r, true)
}

func (h *MatchesHandler) merge(w http.ResponseWriter, r *http.Request, preview bool) {
	logger := contextkeys.LoggerFromContext(r.Context())

	var dto MergeRequestDTO
	if err := decodeJSON(r, &dto); err != nil {
		logger.Warn("Invalid merge request", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "MatchesHandler: "+err.Error())
		return
	}

	handlerLogger := logger.WithFields(port.Fields{
		"handler":     "Merge",
		"preview":     preview,
		"domrf_id":    dto.DomRFID,
		"avito_id":    dto.AvitoID,
		"domclick_id": dto.DomClickID,
	})
	handlerLogger.Info("Processing request", nil)

	run := h.manualMergeUC.Merge
	status := http.StatusCreated
	if preview {
		run = h.manualMergeUC.Preview
		status = http.StatusOK
	}

	rec, err := run(r.Context(), dto.toDomain())
	if err != nil {
		handlerLogger.Error("Use case failed", err, nil)
		WriteDomainError(w, err)
		return
	}

	handlerLogger.Info("Merge finished", port.Fields{"unified_id": rec.ID})
	RespondWithJSON(w, status, rec)
}

// Unmatched обрабатывает GET /api/v1/unmatched?kind=&search=&limit=
func (h *MatchesHandler) Unmatched(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())
	query := r.URL.Query()

	kind, err := domain.ParseSourceKind(query.Get("kind"))
	if err != nil {
		logger.Warn("Invalid 'kind' parameter", port.Fields{"error": err.Error()})
		WriteDomainError(w, err)
		return
	}
	limit, err := GetLimitOrDefault(r)
	if err != nil {
		logger.Warn("Invalid 'limit' parameter", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "MatchesHandler: invalid limit value")
		return
	}

	recs, err := h.listUnmatchedUC.Execute(r.Context(), kind, domain.SourceQuery{
		Search: query.Get("search"),
		Limit:  limit,
	})
	if err != nil {
		logger.Error("Use case failed", err, port.Fields{"handler": "Unmatched", "kind": string(kind)})
		WriteDomainError(w, err)
		return
	}

	response := make([]SourceCardResponse, len(recs))
	for i, rec := range recs {
		response[i] = toSourceCard(rec)
	}
	RespondWithJSON(w, http.StatusOK, response)
}

// Candidates обрабатывает GET /api/v1/candidates?kind=&id=: ранжированные кандидаты без решения
func (h *MatchesHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context())
	query := r.URL.Query()

	kind, err := domain.ParseSourceKind(query.Get("kind"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	id := query.Get("id")
	if id == "" {
		logger.Warn("Missing 'id' parameter", nil)
		WriteJSONError(w, http.StatusBadRequest, "MatchesHandler: empty id value")
		return
	}

	probe, found, err := h.candidatesUC.ForSource(r.Context(), kind, id)
	if err != nil {
		logger.Error("Use case failed", err, port.Fields{"handler": "Candidates", "kind": string(kind), "id": id})
		WriteDomainError(w, err)
		return
	}
	RespondWithJSON(w, http.StatusOK, toCandidatesResponse(probe, found))
}
