package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reverseBody = `{
	"display_name": "130, улица Менделеева, Кировский район, Уфа, Башкортостан, Россия",
	"address": {"town": "Уфа", "suburb": "Кировский район", "road": "улица Менделеева", "house_number": "130"}
}`

type geocoderStub struct {
	calls     atomic.Int32
	status    int
	body      string
	delay     time.Duration
	userAgent atomic.Value
	apiKey    atomic.Value
}

func (s *geocoderStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	s.userAgent.Store(r.Header.Get("User-Agent"))
	s.apiKey.Store(r.URL.Query().Get("api_key"))
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if r.URL.Path != "/reverse" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.body))
}

func newAdapter(t *testing.T, stub *geocoderStub, timeout time.Duration) *GeocodeMapsAdapter {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	a, err := NewGeocodeMapsAdapter(Config{
		BaseURL:   server.URL,
		APIKey:    "secret",
		UserAgent: "houses_unification/test",
		Timeout:   timeout,
	}, nil)
	require.NoError(t, err)
	return a
}

func TestReverse_ParsesAndCaches(t *testing.T) {
	stub := &geocoderStub{status: http.StatusOK, body: reverseBody}
	a := newAdapter(t, stub, time.Second)
	ctx := context.Background()

	first := a.Reverse(ctx, 54.73, 55.96)
	assert.Equal(t, "Уфа", first.City)
	assert.Equal(t, "Кировский район", first.District)
	assert.Equal(t, "улица Менделеева", first.Street)
	assert.Equal(t, "130", first.HouseNumber)
	assert.Equal(t, "г. Уфа, р-он Кировский район, ул. улица Менделеева, д. 130", first.Full)

	// совпадает после округления до 6 знаков
	second := a.Reverse(ctx, 54.7300000001, 55.9600000004)
	assert.Equal(t, first, second)
	for i := 0; i < 5; i++ {
		a.Reverse(ctx, 54.73, 55.96)
	}

	assert.Equal(t, int32(1), stub.calls.Load(), "повторная точка всегда берется из кэша")
	assert.Equal(t, "houses_unification/test", stub.userAgent.Load())
	assert.Equal(t, "secret", stub.apiKey.Load())
	assert.Equal(t, 1, a.CacheSize())
}

func TestReverse_ServerErrorIsNotCached(t *testing.T) {
	stub := &geocoderStub{status: http.StatusInternalServerError, body: `{"error":"boom"}`}
	a := newAdapter(t, stub, time.Second)

	assert.True(t, a.Reverse(context.Background(), 54.73, 55.96).Empty())
	assert.True(t, a.Reverse(context.Background(), 54.73, 55.96).Empty())
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Equal(t, 0, a.CacheSize())
}

func TestReverse_BadJSONAndTimeout(t *testing.T) {
	stub := &geocoderStub{status: http.StatusOK, body: `not json`}
	a := newAdapter(t, stub, time.Second)
	assert.True(t, a.Reverse(context.Background(), 1, 2).Empty())

	slow := &geocoderStub{status: http.StatusOK, body: reverseBody, delay: 300 * time.Millisecond}
	b := newAdapter(t, slow, 50*time.Millisecond)
	assert.True(t, b.Reverse(context.Background(), 1, 2).Empty())
	assert.Equal(t, 0, b.CacheSize())
}

func TestReverse_DisplayNameFallback(t *testing.T) {
	stub := &geocoderStub{status: http.StatusOK, body: `{"display_name":"где-то в поле","address":{}}`}
	a := newAdapter(t, stub, time.Second)

	got := a.Reverse(context.Background(), 10, 20)
	assert.Equal(t, "где-то в поле", got.Full)
	assert.Equal(t, "", got.City)
}

func TestNewGeocodeMapsAdapter_InvalidBase(t *testing.T) {
	_, err := NewGeocodeMapsAdapter(Config{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}

func TestRound6(t *testing.T) {
	assert.Equal(t, 54.123457, round6(54.1234567))
	assert.Equal(t, round6(54.77), round6(54.7700000001))
}
