package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"unification-service/internal/contextkeys"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/extractors"
	"unification-service/internal/core/port"
)

var (
	developmentFields = map[string]bool{
		"name": true, "address": true, "price_range": true,
		"parameters": true, "korpuses": true, "photos": true,
	}
	addressFields     = map[string]bool{"full": true, "city": true, "district": true, "street": true, "house": true}
	coordinateFields  = map[string]bool{"lat": true, "lon": true}
	scalarFields      = map[string]bool{"is_featured": true, "agent_id": true, "rating": true, "rating_description": true}
	apartmentTypesKey = "apartment_types"
)

// UpdateUnifiedUseCase - правка каноники из админки по белому списку путей
type UpdateUnifiedUseCase struct {
	canonical port.CanonicalStorePort
	writer    *CanonicalWriter
	now       func() time.Time
}

func NewUpdateUnifiedUseCase(canonical port.CanonicalStorePort, writer *CanonicalWriter) *UpdateUnifiedUseCase {
	return &UpdateUnifiedUseCase{canonical: canonical, writer: writer, now: time.Now}
}

// Update применяет плоский набор путей. Отказы схемы возвращаются до любой записи.
func (uc *UpdateUnifiedUseCase) Update(ctx context.Context, id string, patch map[string]any) (*domain.CanonicalRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":     "UpdateUnified",
		"canonical_id": id,
	})

	if len(patch) == 0 {
		return nil, domain.Schemaf("update unified", "empty update")
	}
	for path := range patch {
		if err := checkUpdatePath(path); err != nil {
			return nil, err
		}
	}

	set, err := coerce(patch)
	if err != nil {
		return nil, err
	}

	current, err := uc.canonical.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update unified: %w", err)
	}
	if err := uc.applyCurrent(current, set); err != nil {
		return nil, err
	}
	if err := preserveFacets(current, set); err != nil {
		return nil, err
	}

	rec, err := uc.writer.UpdateFields(ctx, id, set, domain.EventUnifiedUpdated)
	if err != nil {
		return nil, err
	}
	logger.Info("Unified record updated", port.Fields{"paths": len(patch)})
	return rec, nil
}

func (uc *UpdateUnifiedUseCase) SetFeatured(ctx context.Context, id string, featured bool) (*domain.CanonicalRecord, error) {
	rec, err := uc.writer.UpdateFields(ctx, id, map[string]any{"is_featured": featured}, domain.EventUnifiedUpdated)
	if err != nil {
		return nil, fmt.Errorf("set featured: %w", err)
	}
	return rec, nil
}

func checkUpdatePath(path string) error {
	root, rest, _ := strings.Cut(path, ".")
	if root == "_id" {
		return domain.Schemaf("update unified", "_id cannot be changed")
	}
	first, _, deeper := strings.Cut(rest, ".")

	ok := false
	switch {
	case root == "development":
		ok = developmentFields[first] && (!deeper || first == "parameters")
	case root == "address":
		ok = rest == "" || (addressFields[first] && !deeper)
	case root == "coordinates":
		ok = rest == "" || (coordinateFields[first] && !deeper)
	case root == apartmentTypesKey, root == "construction_progress":
		ok = true
	case scalarFields[root]:
		ok = rest == ""
	}
	if !ok {
		return domain.Schemaf("update unified", "field %q cannot be updated", path).WithField("path", path)
	}
	return nil
}

// coerce приводит значения формы к типам записи. Проверки, которым не нужна
// текущая запись, выполняются здесь, до чтения из хранилища.
func coerce(patch map[string]any) (map[string]any, error) {
	set := make(map[string]any, len(patch)+2)
	for path, value := range patch {
		switch path {
		case "is_featured":
			set[path] = coerceBool(value)

		case "coordinates.lat", "coordinates.lon":
			v, err := coerceCoordinate(path, value)
			if err != nil {
				return nil, err
			}
			set[path] = v

		case "coordinates":
			if value == nil {
				set[path] = nil
				continue
			}
			coords, err := coerceCoordinates(value)
			if err != nil {
				return nil, err
			}
			set[path] = coords

		case "rating":
			rating, err := coerceRating(value)
			if err != nil {
				return nil, err
			}
			set[path] = rating

		case "agent_id":
			if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
				set[path] = strings.TrimSpace(s)
			} else {
				set[path] = nil
			}

		default:
			set[path] = value
		}
	}

	// отдельная широта или долгота сама по себе не может выйти за диапазон пары
	if lat, ok := set["coordinates.lat"].(float64); ok && (lat < -90 || lat > 90) {
		return nil, domain.NewError(domain.ErrorKindInvalidCoordinates, "update unified", fmt.Sprintf("latitude %v out of range", lat))
	}
	if lon, ok := set["coordinates.lon"].(float64); ok && (lon < -180 || lon > 180) {
		return nil, domain.NewError(domain.ErrorKindInvalidCoordinates, "update unified", fmt.Sprintf("longitude %v out of range", lon))
	}
	return set, nil
}

// applyCurrent - часть проверок, зависящая от текущей записи
func (uc *UpdateUnifiedUseCase) applyCurrent(current *domain.CanonicalRecord, set map[string]any) error {
	if v, ok := set["coordinates"]; ok && v == nil && !current.IsFuture {
		return domain.Schemaf("update unified", "coordinates of a non-future record cannot be removed")
	}
	if err := mergeCoordinateParts(current, set); err != nil {
		return err
	}

	if rating, ok := set["rating"].(*int); ok && rating != nil {
		now := uc.now().UTC()
		set["rating_updated_at"] = now
		if current.RatingCreatedAt == nil {
			set["rating_created_at"] = now
		}
	}
	return nil
}

// mergeCoordinateParts сводит coordinates.lat/coordinates.lon в целую пару
func mergeCoordinateParts(current *domain.CanonicalRecord, set map[string]any) error {
	lat, hasLat := set["coordinates.lat"].(float64)
	lon, hasLon := set["coordinates.lon"].(float64)
	if !hasLat && !hasLon {
		return nil
	}

	var base *domain.Coordinates
	if whole, ok := set["coordinates"].(map[string]any); ok {
		base = &domain.Coordinates{Lat: whole["lat"].(float64), Lon: whole["lon"].(float64)}
	} else if _, removed := set["coordinates"]; !removed && current.Coordinates != nil {
		c := *current.Coordinates
		base = &c
	}
	if base == nil && (!hasLat || !hasLon) {
		return domain.NewError(domain.ErrorKindInvalidCoordinates, "update unified",
			"record has no coordinates: both coordinates.lat and coordinates.lon are required")
	}
	if base == nil {
		base = &domain.Coordinates{}
	}
	if hasLat {
		base.Lat = lat
	}
	if hasLon {
		base.Lon = lon
	}
	if !base.InRange() {
		return domain.NewError(domain.ErrorKindInvalidCoordinates, "update unified", fmt.Sprintf("(%v, %v) out of range", base.Lat, base.Lon))
	}

	delete(set, "coordinates.lat")
	delete(set, "coordinates.lon")
	set["coordinates"] = map[string]any{"lat": base.Lat, "lon": base.Lon}
	return nil
}

// coerceBool: "1", "true", "on" - истина, как у чекбокса формы
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}

func coerceCoordinate(path string, v any) (float64, error) {
	var (
		f  float64
		ok bool
	)
	switch t := v.(type) {
	case float64:
		f, ok = t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case string:
		f, ok = domain.ParseNumber(t)
	}
	if !ok {
		return 0, domain.NewError(domain.ErrorKindInvalidCoordinates, "update unified",
			fmt.Sprintf("%s: cannot parse %v as float", path, v))
	}
	return f, nil
}

func coerceCoordinates(v any) (map[string]any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, domain.Schemaf("update unified", "coordinates must be an object with lat and lon")
	}
	lat, err := coerceCoordinate("coordinates.lat", obj["lat"])
	if err != nil {
		return nil, err
	}
	lon, err := coerceCoordinate("coordinates.lon", obj["lon"])
	if err != nil {
		return nil, err
	}
	c := domain.Coordinates{Lat: lat, Lon: lon}
	if !c.InRange() {
		return nil, domain.NewError(domain.ErrorKindInvalidCoordinates, "update unified", fmt.Sprintf("(%v, %v) out of range", lat, lon))
	}
	return map[string]any{"lat": lat, "lon": lon}, nil
}

// coerceRating: null снимает оценку, иначе целое 1..5
func coerceRating(v any) (*int, error) {
	var n int
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if t != math.Trunc(t) {
			return nil, domain.Schemaf("update unified", "rating must be an integer, got %v", t)
		}
		n = int(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return nil, domain.Schemaf("update unified", "rating must be an integer, got %q", t)
		}
		n = parsed
	default:
		return nil, domain.Schemaf("update unified", "rating must be an integer, got %T", v)
	}
	if n < 1 || n > 5 {
		return nil, domain.Schemaf("update unified", "rating must be between 1 and 5, got %d", n).WithField("rating", n)
	}
	return &n, nil
}

// preserveFacets заменяет пути apartment_types итоговым значением, в котором
// квартиры из частичного обновления дополнены полями текущей записи
func preserveFacets(current *domain.CanonicalRecord, set map[string]any) error {
	touched := make(map[string]bool)
	all := false
	for path := range set {
		root, rest, _ := strings.Cut(path, ".")
		if root != apartmentTypesKey {
			continue
		}
		if rest == "" {
			all = true
			continue
		}
		key, _, _ := strings.Cut(rest, ".")
		touched[key] = true
	}
	if !all && len(touched) == 0 {
		return nil
	}

	patched := make(map[string]any)
	for path, value := range set {
		if root, _, _ := strings.Cut(path, "."); root == apartmentTypesKey {
			patched[path] = value
			delete(set, path)
		}
	}
	merged, err := domain.ApplyPaths(current, patched)
	if err != nil {
		return err
	}

	out := make(domain.ApartmentTypes, len(merged.ApartmentTypes))
	for key, group := range merged.ApartmentTypes {
		canonicalKey, ok := key, domain.IsCanonicalRoomKey(key)
		if !ok {
			canonicalKey, ok = extractors.CanonicalRoomKey(key)
		}
		if !ok {
			return domain.Schemaf("update unified", "unknown apartment type %q", key).WithField("key", key)
		}
		if all || touched[key] {
			restoreGroup(&group, current.ApartmentTypes[canonicalKey])
			if err := checkFacets(canonicalKey, group.Apartments); err != nil {
				return err
			}
		}
		if existing, dup := out[canonicalKey]; dup && len(existing.Apartments) > 0 {
			continue
		}
		if group.Apartments == nil {
			group.Apartments = []domain.ApartmentFacet{}
		}
		out[canonicalKey] = group
	}
	set[apartmentTypesKey] = out
	return nil
}

// restoreGroup: пара для квартиры ищется по id, иначе по позиции
func restoreGroup(group *domain.ApartmentGroup, current domain.ApartmentGroup) {
	byID := make(map[string]*domain.ApartmentFacet, len(current.Apartments))
	for i := range current.Apartments {
		if id := current.Apartments[i].ID; id != "" {
			byID[id] = &current.Apartments[i]
		}
	}
	for i := range group.Apartments {
		facet := &group.Apartments[i]
		var match *domain.ApartmentFacet
		if facet.ID != "" {
			match = byID[facet.ID]
		} else if i < len(current.Apartments) {
			match = &current.Apartments[i]
		}
		extractors.RestoreFacet(facet, match)
	}
}

// checkFacets: этажи оба заданы и 1 <= floorMin <= floorMax либо оба пусты,
// площадь и цена положительны либо пусты
func checkFacets(key string, facets []domain.ApartmentFacet) error {
	for i, f := range facets {
		var problem string
		switch {
		case (f.FloorMin == nil) != (f.FloorMax == nil):
			problem = "floorMin and floorMax must be set together"
		case f.FloorMin != nil && (*f.FloorMin < 1 || *f.FloorMax < 1):
			problem = "floors must be positive"
		case f.FloorMin != nil && *f.FloorMin > *f.FloorMax:
			problem = fmt.Sprintf("floorMin %d is greater than floorMax %d", *f.FloorMin, *f.FloorMax)
		case f.TotalArea != nil && !(*f.TotalArea > 0):
			problem = "totalArea must be positive"
		case f.PriceValue != nil && *f.PriceValue <= 0:
			problem = "price_value must be positive"
		}
		if problem != "" {
			return domain.Schemaf("update unified", "apartment_types.%s.apartments.%d: %s", key, i, problem).
				WithField("key", key).WithField("index", i)
		}
	}
	return nil
}
