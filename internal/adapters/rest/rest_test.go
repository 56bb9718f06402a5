package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/adapters/memory"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/merger"
	"unification-service/internal/core/normalizer"
	"unification-service/internal/core/usecase"
)

type emptyGeocoder struct{}

func (emptyGeocoder) Reverse(context.Context, float64, float64) domain.GeoAddress {
	return domain.GeoAddress{}
}

type discardEvents struct{}

func (discardEvents) Publish(context.Context, domain.UnificationEvent) error { return nil }

type apiEnv struct {
	sources *memory.SourceStore
	handler http.Handler
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	sources := memory.NewSourceStore()
	canonical := memory.NewCanonicalStore()
	m := merger.New(emptyGeocoder{}, merger.Options{})
	writer := usecase.NewCanonicalWriter(canonical, sources, discardEvents{}, nil)

	matches := NewMatchesHandler(
		usecase.NewManualMergeUseCase(sources, m, writer),
		usecase.NewListUnmatchedUseCase(sources),
		usecase.NewFindCandidatesUseCase(sources),
	)
	unified := NewUnifiedHandler(
		usecase.NewGetUnifiedUseCase(canonical),
		usecase.NewUpdateUnifiedUseCase(canonical, writer),
		usecase.NewRebuildUseCase(sources, canonical, m, writer),
		usecase.NewFutureProjectUseCase(sources, canonical, m, writer),
	)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("# metrics\n"))
	})

	e := &apiEnv{
		sources: sources,
		handler: NewRouter(matches, unified, metrics, []string{"http://localhost:5173"}, contextkeys.LoggerFromContext(context.Background())),
	}
	e.put(t, domain.KindDomRF, "D1", `{"objCommercNm":"ЖК «Greenwich»","latitude":54.73,"longitude":55.96}`)
	e.put(t, domain.KindAvito, "A1", `{"development":{"name":"Greenwich","address":"ул. Ленина 1, Уфа"}}`)
	e.put(t, domain.KindDomRF, "D2", `{"objCommercNm":"ЖК Будущий"}`)
	return e
}

func (e *apiEnv) put(t *testing.T, kind domain.SourceKind, id, doc string) {
	t.Helper()
	rec, err := domain.DecodeSourceRecord(kind, id, []byte(doc), domain.SourceLifecycle{}, "")
	require.NoError(t, err)
	rec.NormalizedName = normalizer.Normalize(rec.DisplayName())
	require.NoError(t, e.sources.PutSource(rec))
}

func (e *apiEnv) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealthzAndMetrics(t *testing.T) {
	e := newAPIEnv(t)

	rec, body := e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	rec, _ = e.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestTraceIDIsPropagated(t *testing.T) {
	e := newAPIEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Trace-ID", "0b5c7a7e-8f7e-4d7a-9d47-3f0b2d1c9a10")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	assert.Equal(t, "0b5c7a7e-8f7e-4d7a-9d47-3f0b2d1c9a10", rec.Header().Get("X-Trace-ID"))
}

func TestManualMergeFlow(t *testing.T) {
	e := newAPIEnv(t)

	rec, preview := e.do(t, http.MethodPost, "/api/v1/matches/preview", `{"domrf_id":"D1","avito_id":"A1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "manual_preview", preview["source"])

	rec, created := e.do(t, http.MethodPost, "/api/v1/matches", `{"domrf_id":"D1","avito_id":"A1","is_featured":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "manual", created["created_by"])
	assert.Equal(t, true, created["is_featured"])
	id, _ := created["_id"].(string)
	require.NotEmpty(t, id)

	rec, got := e.do(t, http.MethodGet, "/api/v1/unified/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"domrf": "D1", "avito": "A1", "domclick": nil}, got["_source_ids"])

	a1, err := e.sources.Get(context.Background(), domain.KindAvito, "A1")
	require.NoError(t, err)
	assert.True(t, a1.Lifecycle.IsMatched)

	// повторное слияние уже сопоставленного источника
	rec, body := e.do(t, http.MethodPost, "/api/v1/matches", `{"avito_id":"A1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "schema_violation", body["error_type"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unified?near=54.7301,55.9601", nil)
	list := httptest.NewRecorder()
	e.handler.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)
	var near []map[string]any
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &near))
	require.Len(t, near, 1)
	assert.Equal(t, id, near[0]["_id"])
}

func TestManualMergeErrors(t *testing.T) {
	e := newAPIEnv(t)

	cases := []struct {
		name      string
		body      string
		status    int
		errorType string
	}{
		{"no ids", `{"latitude":"54.7","longitude":"55.9"}`, http.StatusBadRequest, ""},
		{"only one coordinate", `{"domrf_id":"D1","latitude":"54.7"}`, http.StatusBadRequest, ""},
		{"unknown field", `{"domrf_id":"D1","foo":1}`, http.StatusBadRequest, ""},
		{"bad coordinates", `{"domrf_id":"D1","latitude":"abc","longitude":"55,9"}`, http.StatusBadRequest, "invalid_coordinates"},
		{"missing source", `{"domclick_id":"C404"}`, http.StatusNotFound, "source_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := e.do(t, http.MethodPost, "/api/v1/matches", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, body["error"])
			if tc.errorType != "" {
				assert.Equal(t, tc.errorType, body["error_type"])
			}
		})
	}
}

func TestUnifiedUpdateAndRebuild(t *testing.T) {
	e := newAPIEnv(t)
	_, created := e.do(t, http.MethodPost, "/api/v1/matches", `{"domrf_id":"D1"}`)
	id := created["_id"].(string)

	rec, body := e.do(t, http.MethodPatch, "/api/v1/unified/"+id, `{"rating":4,"rating_description":"хороший"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(4), body["rating"])
	assert.NotNil(t, body["rating_created_at"])

	rec, body = e.do(t, http.MethodPatch, "/api/v1/unified/"+id, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "schema_violation", body["error_type"])

	rec, body = e.do(t, http.MethodPatch, "/api/v1/unified/"+id, `{"rating":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "schema_violation", body["error_type"])

	rec, body = e.do(t, http.MethodPost, "/api/v1/unified/"+id+"/featured", `{"is_featured":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["is_featured"])

	rec, body = e.do(t, http.MethodPost, "/api/v1/unified/"+id+"/rebuild", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["is_featured"], "ребилд сохраняет ручные поля")
	assert.Equal(t, float64(4), body["rating"])
	assert.Equal(t, "script", body["created_by"])

	rec, body = e.do(t, http.MethodGet, "/api/v1/unified/U404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "canonical_not_found", body["error_type"])
}

func TestFutureProjects(t *testing.T) {
	e := newAPIEnv(t)

	rec, body := e.do(t, http.MethodPost, "/api/v1/future-projects", `{"domrf_id":"D2","latitude":"54,70","longitude":"55,90","name":"Будущий"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["is_future"])
	id := body["_id"].(string)

	d2, err := e.sources.Get(context.Background(), domain.KindDomRF, "D2")
	require.NoError(t, err)
	require.NotNil(t, d2.Lifecycle.FutureProjectID)
	assert.Equal(t, id, *d2.Lifecycle.FutureProjectID)
	assert.False(t, d2.Lifecycle.IsMatched)

	rec, body = e.do(t, http.MethodDelete, "/api/v1/future-projects/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, false, body["is_future"])

	rec, body = e.do(t, http.MethodDelete, "/api/v1/future-projects/"+id, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "schema_violation", body["error_type"])

	rec, _ = e.do(t, http.MethodPost, "/api/v1/future-projects", `{"latitude":"54.7","longitude":"55.9"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnmatchedAndCandidates(t *testing.T) {
	e := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unmatched?kind=domrf&search=greenwich", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var cards []SourceCardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "D1", cards[0].ID)
	assert.Equal(t, "ЖК «Greenwich»", cards[0].Name)
	require.NotNil(t, cards[0].Coordinates)

	r, body := e.do(t, http.MethodGet, "/api/v1/unmatched?kind=cian", "")
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "schema_violation", body["error_type"])

	r, _ = e.do(t, http.MethodGet, "/api/v1/unmatched?kind=avito&limit=x", "")
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r, _ = e.do(t, http.MethodGet, "/api/v1/candidates?kind=avito&id=A1", "")
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	var resp CandidatesResponse
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &resp))
	assert.Equal(t, "A1", resp.Probe.ID)
	require.Len(t, resp.Candidates["domrf"], 1)
	assert.Equal(t, "D1", resp.Candidates["domrf"][0].SourceID)
	// у A1 нет координат - расстояния нет
	assert.Nil(t, resp.Candidates["domrf"][0].DistanceMeters)

	// проба без кандидатов - не ошибка
	r, _ = e.do(t, http.MethodGet, "/api/v1/candidates?kind=domrf&id=D2", "")
	require.Equal(t, http.StatusOK, r.Code, r.Body.String())
	resp = CandidatesResponse{}
	require.NoError(t, json.Unmarshal(r.Body.Bytes(), &resp))
	assert.Empty(t, resp.Candidates["avito"])
	assert.Empty(t, resp.Candidates["domclick"])

	r, body = e.do(t, http.MethodGet, "/api/v1/candidates?kind=avito&id=A404", "")
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "source_not_found", body["error_type"])
}

func TestParseNear(t *testing.T) {
	lat, lon, err := parseNear("54.73, 55.96")
	require.NoError(t, err)
	assert.Equal(t, 54.73, lat)
	assert.Equal(t, 55.96, lon)

	_, _, err = parseNear("54.73")
	assert.Error(t, err)
	_, _, err = parseNear("a,b")
	assert.Error(t, err)
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForKind(domain.ErrorKindMissingCoordinates))
	assert.Equal(t, http.StatusNotFound, statusForKind(domain.ErrorKindCanonicalNotFound))
	assert.Equal(t, http.StatusNotFound, statusForKind(domain.ErrorKindSourceNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusForKind(domain.ErrorKindNoCandidates))
	assert.Equal(t, http.StatusBadGateway, statusForKind(domain.ErrorKindGeocoderUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(""))
}
