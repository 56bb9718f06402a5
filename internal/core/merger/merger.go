// Package merger собирает каноническую запись из записей источников по
// фиксированной таблице приоритетов.
package merger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"unification-service/internal/constants"
	"unification-service/internal/contextkeys"
	"unification-service/internal/core/addressparser"
	"unification-service/internal/core/domain"
	"unification-service/internal/core/extractors"
	"unification-service/internal/core/port"
)

// Input - не больше одной записи на источник и параметры создания
type Input struct {
	DomRF    *domain.SourceRecord
	Avito    *domain.SourceRecord
	DomClick *domain.SourceRecord

	// Coordinates - координаты оператора, главнее любых координат источников
	Coordinates *domain.Coordinates
	// AllowMissingCoordinates - только для будущих проектов
	AllowMissingCoordinates bool

	// Name - название оператора (будущий проект), главнее источников
	Name       string
	Source     string
	CreatedBy  string
	AgentID    *string
	IsFeatured bool
	IsFuture   bool
}

type Options struct {
	DefaultCity string
	// DisagreementMeters - расхождение координат DomRF и Avito, о котором пишем в лог
	DisagreementMeters float64
}

type Merger struct {
	geocoder port.GeocoderPort
	opts     Options
}

func New(geocoder port.GeocoderPort, opts Options) *Merger {
	if opts.DefaultCity == "" {
		opts.DefaultCity = "Уфа"
	}
	return &Merger{geocoder: geocoder, opts: opts}
}

// Merge строит каноническую запись. Id и created_at назначает писатель.
// Ошибки: SchemaViolation (нет записей или запись не того вида), MissingCoordinates.
func (m *Merger) Merge(ctx context.Context, in Input) (*domain.CanonicalRecord, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "Merger",
		"domrf":     idOf(in.DomRF),
		"avito":     idOf(in.Avito),
		"domclick":  idOf(in.DomClick),
	})

	coords, err := m.coordinates(in)
	if err != nil {
		return nil, err
	}
	m.logDisagreement(logger, in)

	rec := &domain.CanonicalRecord{
		Coordinates:    coords,
		Address:        m.address(ctx, in, coords),
		Source:         in.Source,
		CreatedBy:      in.CreatedBy,
		IsFeatured:     in.IsFeatured,
		IsFuture:       in.IsFuture,
		AgentID:        in.AgentID,
		ApartmentTypes: apartmentTypes(in),
	}
	if rec.Source == "" {
		rec.Source = constants.SourceTagManual
	}
	if rec.CreatedBy == "" {
		rec.CreatedBy = constants.CreatedByManual
	}
	rec.SourceIDs.Set(domain.KindDomRF, idOf(in.DomRF))
	rec.SourceIDs.Set(domain.KindAvito, idOf(in.Avito))
	rec.SourceIDs.Set(domain.KindDomClick, idOf(in.DomClick))

	rec.ConstructionProgress = constructionProgress(in)
	rec.Development = development(in, rec.Address.Full, rec.ConstructionProgress)

	logger.Debug("Canonical record composed", port.Fields{
		"name":  rec.Development.Name,
		"rooms": rec.ApartmentTypes.Keys(),
	})
	return rec, nil
}

func checkInput(in Input) error {
	if in.DomRF == nil && in.Avito == nil && in.DomClick == nil {
		return domain.Schemaf("merge", "at least one source record is required")
	}
	for kind, rec := range map[domain.SourceKind]*domain.SourceRecord{
		domain.KindDomRF:    in.DomRF,
		domain.KindAvito:    in.Avito,
		domain.KindDomClick: in.DomClick,
	} {
		if rec != nil && rec.Kind != kind {
			return domain.Schemaf("merge", "record %s is %s, expected %s", rec.ID, rec.Kind, kind)
		}
	}
	return nil
}

// coordinates: оператор > DomRF > Avito > DomClick
func (m *Merger) coordinates(in Input) (*domain.Coordinates, error) {
	if in.Coordinates != nil {
		if !in.Coordinates.InRange() {
			return nil, domain.NewError(domain.ErrorKindInvalidCoordinates, "merge",
				fmt.Sprintf("(%v, %v) out of range", in.Coordinates.Lat, in.Coordinates.Lon))
		}
		c := *in.Coordinates
		return &c, nil
	}
	for _, rec := range []*domain.SourceRecord{in.DomRF, in.Avito, in.DomClick} {
		if c := rec.Coordinates(); c != nil {
			return c, nil
		}
	}
	if in.AllowMissingCoordinates {
		return nil, nil
	}

	err := domain.NewError(domain.ErrorKindMissingCoordinates, "merge", "no coordinates supplied and none of the sources carries them")
	for kind, rec := range map[domain.SourceKind]*domain.SourceRecord{
		domain.KindDomRF:    in.DomRF,
		domain.KindAvito:    in.Avito,
		domain.KindDomClick: in.DomClick,
	} {
		if rec == nil {
			continue
		}
		lat, lon := rec.RawCoordinates()
		err = err.WithField(string(kind), map[string]any{
			"id":        rec.ID,
			"latitude":  rawValue(lat),
			"longitude": rawValue(lon),
		})
	}
	return nil, err
}

func rawValue(n domain.Number) any {
	if n.Raw == "" {
		return nil
	}
	return n.Raw
}

// logDisagreement - DomRF выигрывает всегда, расхождение только фиксируем
func (m *Merger) logDisagreement(logger port.LoggerPort, in Input) {
	if m.opts.DisagreementMeters <= 0 {
		return
	}
	a, b := in.DomRF.Coordinates(), in.Avito.Coordinates()
	if a == nil || b == nil {
		return
	}
	if d := domain.DistanceMeters(*a, *b); d > m.opts.DisagreementMeters {
		logger.Warn("DomRF and Avito coordinates disagree, DomRF wins", port.Fields{
			"distance_m": int(d),
			"domrf_lat":  a.Lat,
			"domrf_lon":  a.Lon,
			"avito_lat":  b.Lat,
			"avito_lon":  b.Lon,
		})
	}
}

// fallbackAddress: адрес Avito, затем DomClick, затем части адреса DomRF
func fallbackAddress(in Input) string {
	if in.Avito != nil {
		if s := strings.TrimSpace(in.Avito.Avito.Development.Address); s != "" {
			return s
		}
	}
	if in.DomClick != nil {
		if s := strings.TrimSpace(in.DomClick.DomClick.Development.Address); s != "" {
			return s
		}
	}
	if in.DomRF != nil {
		if parts := in.DomRF.DomRF.AddressParts(); len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
		return strings.TrimSpace(in.DomRF.DomRF.Address)
	}
	return ""
}

// address: поле геокодера главнее поля, разобранного из запасной строки
func (m *Merger) address(ctx context.Context, in Input, coords *domain.Coordinates) domain.Address {
	fallback := fallbackAddress(in)
	parsed := addressparser.Parse(fallback)

	var geo domain.GeoAddress
	if coords != nil && m.geocoder != nil {
		geo = m.geocoder.Reverse(ctx, coords.Lat, coords.Lon)
	}

	addr := domain.Address{
		Full:     firstOf(geo.Full, fallback),
		City:     firstOf(geo.City, parsed.City, m.opts.DefaultCity),
		District: firstOf(geo.District, parsed.District),
		Street:   addressparser.TruncateAtSlash(firstOf(geo.Street, parsed.Street)),
		House:    firstOf(geo.HouseNumber, parsed.HouseNumber),
	}

	// второй запрос только ради района; при неудаче оставляем пустым
	if addr.District == "" && coords != nil && m.geocoder != nil {
		addr.District = m.geocoder.Reverse(ctx, coords.Lat, coords.Lon).District
	}
	return addr
}

func development(in Input, addressFull string, progress domain.ConstructionProgress) domain.Development {
	dev := domain.Development{
		Name:       name(in),
		Address:    addressFull,
		Parameters: map[string]string{},
		Korpuses:   []json.RawMessage{},
		Photos:     []string{},
	}
	if in.Avito == nil {
		return dev
	}

	src := in.Avito.Avito.Development
	if dev.Address == "" {
		dev.Address = strings.TrimSpace(src.Address)
	}
	dev.PriceRange = priceRange(src)
	for k, v := range src.Parameters {
		dev.Parameters[k] = v
	}
	if len(src.Korpuses) > 0 {
		dev.Korpuses = append(dev.Korpuses, src.Korpuses...)
	}
	dev.Photos = withoutProgressPhotos(src.Photos, progress)
	return dev
}

// name: оператор > Avito > DomClick > DomRF
func name(in Input) string {
	candidates := []string{in.Name}
	if in.Avito != nil {
		candidates = append(candidates, in.Avito.Avito.Development.Name)
	}
	if in.DomClick != nil {
		candidates = append(candidates, in.DomClick.DomClick.Development.ComplexName)
	}
	if in.DomRF != nil {
		candidates = append(candidates, in.DomRF.DisplayName())
	}
	if n := firstOf(trimAll(candidates)...); n != "" {
		return n
	}
	return constants.UnnamedComplex
}

// priceRange: из price_range_min/max, иначе из строки, если она разбирается
func priceRange(dev domain.AvitoDevelopment) string {
	r := extractors.PriceRange{Min: dev.PriceRangeMin.Ptr(), Max: dev.PriceRangeMax.Ptr()}
	if r.Empty() {
		r = extractors.ParsePriceRangeBounds(dev.PriceRange)
	}
	if r.Empty() {
		return strings.TrimSpace(dev.PriceRange)
	}
	return extractors.FormatPriceRange(r)
}

func withoutProgressPhotos(photos []string, progress domain.ConstructionProgress) []string {
	skip := make(map[string]struct{})
	for _, stage := range progress.ConstructionStages {
		for _, p := range stage.Photos {
			skip[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(photos))
	seen := make(map[string]struct{}, len(photos))
	for _, p := range photos {
		if _, bad := skip[p]; bad {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// constructionProgress: DomRF > Avito, DomClick не участвует
func constructionProgress(in Input) domain.ConstructionProgress {
	if in.DomRF != nil {
		if p, ok := extractors.ConstructionProgress(in.DomRF.DomRF.ProgressDocument()); ok {
			return p
		}
	}
	if in.Avito != nil {
		if p, ok := extractors.ConstructionProgress(in.Avito.Avito.ProgressDocument()); ok {
			return p
		}
	}
	return domain.ConstructionProgress{ConstructionStages: []domain.ConstructionStage{}}
}

// apartmentTypes: Avito; DomClick, если Avito нет; скелет из rooms, если есть только DomRF
func apartmentTypes(in Input) domain.ApartmentTypes {
	switch {
	case in.Avito != nil:
		return extractors.ConvertApartmentTypes(in.Avito.Avito.ApartmentTypes)
	case in.DomClick != nil:
		return extractors.ConvertApartmentTypes(in.DomClick.DomClick.ApartmentTypes)
	case in.DomRF != nil:
		return extractors.RoomsSkeleton(in.DomRF.DomRF.Rooms)
	}
	return domain.ApartmentTypes{}
}

func idOf(rec *domain.SourceRecord) string {
	if rec == nil {
		return ""
	}
	return rec.ID
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func trimAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
