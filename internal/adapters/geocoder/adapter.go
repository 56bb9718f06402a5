package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/addressparser"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	// RateSleep - минимальный интервал между запросами к геокодеру
	RateSleep time.Duration
	Timeout   time.Duration
}

type cacheKey struct {
	lat, lon float64
}

// GeocodeMapsAdapter - клиент geocode.maps.co с кэшем на время жизни процесса
type GeocodeMapsAdapter struct {
	// родительский коллектор, клоны разделяют лимиты и http-клиент
	collector *colly.Collector
	baseURL   string
	apiKey    string
	limiter   *rate.Limiter
	metrics   port.MetricsPort

	mu    sync.Mutex
	cache map[cacheKey]domain.GeoAddress
}

var _ port.GeocoderPort = (*GeocodeMapsAdapter)(nil)

// NewGeocodeMapsAdapter - конструктор
func NewGeocodeMapsAdapter(cfg Config, metrics port.MetricsPort) (*GeocodeMapsAdapter, error) {
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("GeocodeMapsAdapter: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if metrics == nil {
		metrics = port.NoopMetrics{}
	}

	c := colly.NewCollector(colly.AllowURLRevisit(), colly.UserAgent(cfg.UserAgent))
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	// запросы к геокодеру строго последовательные
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1}); err != nil {
		return nil, fmt.Errorf("GeocodeMapsAdapter: failed to set limit rule: %w", err)
	}

	limit := rate.Inf
	if cfg.RateSleep > 0 {
		limit = rate.Every(cfg.RateSleep)
	}

	return &GeocodeMapsAdapter{
		collector: c,
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		limiter:   rate.NewLimiter(limit, 1),
		metrics:   metrics,
		cache:     make(map[cacheKey]domain.GeoAddress),
	}, nil
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		CityDistrict string `json:"city_district"`
		District     string `json:"district"`
		Suburb       string `json:"suburb"`
		Road         string `json:"road"`
		Residential  string `json:"residential"`
		Pedestrian   string `json:"pedestrian"`
		HouseNumber  string `json:"house_number"`
	} `json:"address"`
}

// Reverse возвращает части адреса для точки. Любая ошибка дает пустой результат,
// который не кэшируется.
func (a *GeocodeMapsAdapter) Reverse(ctx context.Context, lat, lon float64) domain.GeoAddress {
	if !finite(lat) || !finite(lon) {
		return domain.GeoAddress{}
	}
	key := cacheKey{lat: round6(lat), lon: round6(lon)}

	a.mu.Lock()
	cached, ok := a.cache[key]
	a.mu.Unlock()
	if ok {
		a.metrics.GeocoderLookup("hit")
		return cached
	}

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "GeocodeMapsAdapter",
		"lat":       key.lat,
		"lon":       key.lon,
	})

	result, err := a.fetch(ctx, key)
	if err != nil {
		a.metrics.GeocoderLookup("error")
		logger.Warn("Reverse geocoding unavailable, continuing without it", port.Fields{
			"error":      err.Error(),
			"error_type": string(domain.ErrorKindGeocoderUnavailable),
		})
		return domain.GeoAddress{}
	}

	a.metrics.GeocoderLookup("miss")
	a.mu.Lock()
	a.cache[key] = result
	a.mu.Unlock()
	logger.Debug("Reverse geocoding resolved", port.Fields{"full": result.Full})
	return result
}

func (a *GeocodeMapsAdapter) fetch(ctx context.Context, key cacheKey) (domain.GeoAddress, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.GeoAddress{}, fmt.Errorf("rate limiter: %w", err)
	}

	collector := a.collector.Clone()

	var parsed *reverseResponse
	var fetchErr error

	collector.OnResponse(func(r *colly.Response) {
		var body reverseResponse
		if err := json.Unmarshal(r.Body, &body); err != nil {
			fetchErr = fmt.Errorf("decode reverse response: %w", err)
			return
		}
		parsed = &body
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("reverse request failed with status %d: %w", r.StatusCode, err)
	})

	if visitErr := collector.Visit(a.reverseURL(key)); visitErr != nil && fetchErr == nil {
		fetchErr = visitErr
	}
	if fetchErr != nil {
		return domain.GeoAddress{}, fetchErr
	}
	if parsed == nil {
		return domain.GeoAddress{}, fmt.Errorf("empty reverse response")
	}
	return toGeoAddress(parsed), nil
}

func (a *GeocodeMapsAdapter) reverseURL(key cacheKey) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(key.lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(key.lon, 'f', -1, 64))
	q.Set("api_key", a.apiKey)
	return a.baseURL + "/reverse?" + q.Encode()
}

// toGeoAddress: city > town > village, city_district > district > suburb,
// road > residential > pedestrian
func toGeoAddress(r *reverseResponse) domain.GeoAddress {
	addr := r.Address
	out := domain.GeoAddress{
		City:        firstOf(addr.City, addr.Town, addr.Village),
		District:    firstOf(addr.CityDistrict, addr.District, addr.Suburb),
		Street:      firstOf(addr.Road, addr.Residential, addr.Pedestrian),
		HouseNumber: addr.HouseNumber,
	}
	out.Full = addressparser.FormatFull(out.City, out.District, out.Street, out.HouseNumber)
	if out.Full == "" {
		out.Full = r.DisplayName
	}
	return out
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CacheSize - для диагностики и тестов
func (a *GeocodeMapsAdapter) CacheSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}
