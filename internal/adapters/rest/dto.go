package rest

import (
	"time"

	"github.com/go-playground/validator/v10"

	"unification-service/internal/core/domain"
)

var validate = validator.New()

type errorResponse struct {
	Error     string         `json:"error"`
	ErrorType string         `json:"error_type,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// MergeRequestDTO - тело POST /matches и /matches/preview. Координаты строками: оператор вводит их с запятой.
type MergeRequestDTO struct {
	DomRFID    string  `json:"domrf_id" validate:"required_without_all=AvitoID DomClickID"`
	AvitoID    string  `json:"avito_id"`
	DomClickID string  `json:"domclick_id"`
	Latitude   string  `json:"latitude" validate:"required_with=Longitude"`
	Longitude  string  `json:"longitude" validate:"required_with=Latitude"`
	AgentID    *string `json:"agent_id" validate:"omitempty,min=1"`
	IsFeatured bool    `json:"is_featured"`
}

func (d MergeRequestDTO) toDomain() domain.MergeRequest {
	return domain.MergeRequest{
		DomRFID:    d.DomRFID,
		AvitoID:    d.AvitoID,
		DomClickID: d.DomClickID,
		Latitude:   d.Latitude,
		Longitude:  d.Longitude,
		AgentID:    d.AgentID,
		IsFeatured: d.IsFeatured,
	}
}

type FutureProjectRequestDTO struct {
	DomRFID                 string  `json:"domrf_id" validate:"required"`
	Latitude                string  `json:"latitude" validate:"required_with=Longitude"`
	Longitude               string  `json:"longitude" validate:"required_with=Latitude"`
	Name                    string  `json:"name" validate:"max=300"`
	AgentID                 *string `json:"agent_id" validate:"omitempty,min=1"`
	AllowMissingCoordinates bool    `json:"allow_missing_coordinates"`
}

func (d FutureProjectRequestDTO) toDomain() domain.FutureProjectRequest {
	return domain.FutureProjectRequest{
		DomRFID:                 d.DomRFID,
		Latitude:                d.Latitude,
		Longitude:               d.Longitude,
		Name:                    d.Name,
		AgentID:                 d.AgentID,
		AllowMissingCoordinates: d.AllowMissingCoordinates,
	}
}

type FeaturedRequestDTO struct {
	IsFeatured *bool `json:"is_featured" validate:"required"`
}

// SourceCardResponse - запись источника в списке несопоставленных
type SourceCardResponse struct {
	Kind           string                 `json:"kind"`
	ID             string                 `json:"id"`
	Name           string                 `json:"name"`
	NormalizedName string                 `json:"normalized_name"`
	Coordinates    *domain.Coordinates    `json:"coordinates,omitempty"`
	Lifecycle      domain.SourceLifecycle `json:"lifecycle"`
}

func toSourceCard(rec *domain.SourceRecord) SourceCardResponse {
	return SourceCardResponse{
		Kind:           string(rec.Kind),
		ID:             rec.ID,
		Name:           rec.DisplayName(),
		NormalizedName: rec.NormalizedName,
		Coordinates:    rec.Coordinates(),
		Lifecycle:      rec.Lifecycle,
	}
}

type CandidateResponse struct {
	SourceID       string   `json:"source_id"`
	Name           string   `json:"name"`
	Score          float64  `json:"score"`
	DistanceMeters *float64 `json:"distance_meters"`
}

// CandidatesResponse - ответ GET /candidates: проба и кандидаты по видам
type CandidatesResponse struct {
	Probe      SourceCardResponse             `json:"probe"`
	Candidates map[string][]CandidateResponse `json:"candidates"`
}

func toCandidatesResponse(probe *domain.SourceRecord, found map[domain.SourceKind][]domain.Candidate) CandidatesResponse {
	resp := CandidatesResponse{
		Probe:      toSourceCard(probe),
		Candidates: make(map[string][]CandidateResponse, len(found)),
	}
	for kind, list := range found {
		out := make([]CandidateResponse, len(list))
		for i, c := range list {
			out[i] = CandidateResponse{SourceID: c.SourceID, Name: c.DisplayName, Score: c.Score}
			if c.DistanceMeters >= 0 {
				d := c.DistanceMeters
				out[i].DistanceMeters = &d
			}
		}
		resp.Candidates[string(kind)] = out
	}
	return resp
}

type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
