package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/core/domain"
)

func TestPrometheusAdapter_Counters(t *testing.T) {
	a := NewPrometheusAdapter()

	a.ProbeFinished(domain.KindAvito, domain.ProbeCreated)
	a.ProbeFinished(domain.KindAvito, domain.ProbeCreated)
	a.ProbeFinished(domain.KindAvito, domain.ProbeNoCandidates)
	a.CanonicalWritten("created")
	a.BackRefFailed(domain.KindDomRF)
	a.GeocoderLookup("hit")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.probes.WithLabelValues("avito", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.probes.WithLabelValues("avito", "no_candidates")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.canonicals.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.backRefFailed.WithLabelValues("domrf")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.geocoderLookup.WithLabelValues("hit")))
}

func TestPrometheusAdapter_Handler(t *testing.T) {
	a := NewPrometheusAdapter()
	a.CanonicalWritten("replaced")

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `unification_canonical_writes_total{operation="replaced"} 1`))
}
