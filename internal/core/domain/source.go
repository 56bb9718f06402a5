package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceKind - вид источника
type SourceKind string

const (
	KindDomRF    SourceKind = "domrf"
	KindAvito    SourceKind = "avito"
	KindDomClick SourceKind = "domclick"
)

// AllSourceKinds задает и порядок принятия решений по кандидатам
var AllSourceKinds = []SourceKind{KindDomRF, KindAvito, KindDomClick}

func (k SourceKind) Valid() bool {
	switch k {
	case KindDomRF, KindAvito, KindDomClick:
		return true
	}
	return false
}

// Others возвращает два других вида источника в каноническом порядке
func (k SourceKind) Others() []SourceKind {
	out := make([]SourceKind, 0, 2)
	for _, other := range AllSourceKinds {
		if other != k {
			out = append(out, other)
		}
	}
	return out
}

// ParseSourceKind понимает и старые имена коллекций (avito_2)
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domrf", "dom_rf", "дом.рф":
		return KindDomRF, nil
	case "avito", "avito_2", "avito2":
		return KindAvito, nil
	case "domclick", "dom_click":
		return KindDomClick, nil
	}
	return "", NewError(ErrorKindSchemaViolation, "parse source kind", fmt.Sprintf("unknown source kind %q", s))
}

// SourceLifecycle - единственная часть записи источника, которую меняет ядро
type SourceLifecycle struct {
	IsMatched        bool       `json:"is_matched"`
	MatchedUnifiedID *string    `json:"matched_unified_id"`
	MatchedAt        *time.Time `json:"matched_at"`
	IsProcessed      bool       `json:"is_processed"`
	ProcessedAt      *time.Time `json:"processed_at"`
	FutureProjectID  *string    `json:"future_project_id"`
}

// Available - запись может участвовать в генерации кандидатов
func (l SourceLifecycle) Available() bool {
	return !l.IsMatched && !l.IsProcessed
}

// SourceRecord - запись одного из источников. Полезная нагрузка неизменяема для ядра.
type SourceRecord struct {
	Kind           SourceKind
	ID             string
	NormalizedName string
	Lifecycle      SourceLifecycle

	DomRF    *DomRFPayload
	Avito    *AvitoPayload
	DomClick *DomClickPayload
}

// DisplayName - человекочитаемое название ЖК в терминах конкретного источника
func (r *SourceRecord) DisplayName() string {
	if r == nil {
		return ""
	}
	switch {
	case r.DomRF != nil:
		if r.DomRF.ObjCommercNm != "" {
			return r.DomRF.ObjCommercNm
		}
		return r.DomRF.ComplexShortName
	case r.Avito != nil:
		return r.Avito.Development.Name
	case r.DomClick != nil:
		return r.DomClick.Development.ComplexName
	}
	return ""
}

// RawCoordinates - координаты в том виде, в каком их дал источник (для диагностики)
func (r *SourceRecord) RawCoordinates() (lat, lon Number) {
	switch {
	case r == nil:
		return Number{}, Number{}
	case r.DomRF != nil:
		return r.DomRF.Latitude, r.DomRF.Longitude
	case r.Avito != nil:
		lat, lon = r.Avito.Development.Latitude, r.Avito.Development.Longitude
		if !lat.Valid || !lon.Valid {
			lat, lon = r.Avito.Latitude, r.Avito.Longitude
		}
		return lat, lon
	case r.DomClick != nil:
		return r.DomClick.Latitude, r.DomClick.Longitude
	}
	return Number{}, Number{}
}

// Coordinates возвращает координаты источника, если обе валидны
func (r *SourceRecord) Coordinates() *Coordinates {
	lat, lon := r.RawCoordinates()
	if !lat.Valid || !lon.Valid {
		return nil
	}
	c := Coordinates{Lat: lat.Value, Lon: lon.Value}
	if !c.InRange() {
		return nil
	}
	return &c
}

// DomRFPayload - запись госреестра
type DomRFPayload struct {
	ObjCommercNm     string     `json:"objCommercNm"`
	ComplexShortName string     `json:"complexShortName,omitempty"`
	Latitude         Number     `json:"latitude"`
	Longitude        Number     `json:"longitude"`
	City             string     `json:"city,omitempty"`
	District         string     `json:"district,omitempty"`
	Street           string     `json:"street,omitempty"`
	Address          string     `json:"address,omitempty"`
	Developer        string     `json:"developer,omitempty"`
	Rooms            StringList `json:"rooms,omitempty"`
	ObjectDetails    struct {
		ConstructionProgress json.RawMessage `json:"construction_progress,omitempty"`
		GalleryPhotos        StringList      `json:"gallery_photos,omitempty"`
	} `json:"object_details"`
	ConstructionProgress json.RawMessage `json:"construction_progress,omitempty"`
}

// ProgressDocument - ход строительства: сначала object_details, потом корень
func (p *DomRFPayload) ProgressDocument() json.RawMessage {
	if len(bytes.TrimSpace(p.ObjectDetails.ConstructionProgress)) > 0 {
		return p.ObjectDetails.ConstructionProgress
	}
	return p.ConstructionProgress
}

// AddressParts - непустые части адреса DomRF: город, район, улица
func (p *DomRFPayload) AddressParts() []string {
	var parts []string
	for _, part := range []string{p.City, p.District, p.Street} {
		if s := strings.TrimSpace(part); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

type AvitoDevelopment struct {
	Name                 string            `json:"name"`
	Address              string            `json:"address,omitempty"`
	PriceRange           string            `json:"price_range,omitempty"`
	PriceRangeMin        Number            `json:"price_range_min"`
	PriceRangeMax        Number            `json:"price_range_max"`
	Parameters           StringMap         `json:"parameters,omitempty"`
	Korpuses             []json.RawMessage `json:"korpuses,omitempty"`
	Photos               StringList        `json:"photos,omitempty"`
	Latitude             Number            `json:"latitude"`
	Longitude            Number            `json:"longitude"`
	ConstructionProgress json.RawMessage   `json:"construction_progress,omitempty"`
}

// AvitoPayload - запись классифайда (коллекции avito / avito_2)
type AvitoPayload struct {
	Development          AvitoDevelopment     `json:"development"`
	Latitude             Number               `json:"latitude"`
	Longitude            Number               `json:"longitude"`
	ApartmentTypes       SourceApartmentTypes `json:"apartment_types,omitempty"`
	ConstructionProgress json.RawMessage      `json:"construction_progress,omitempty"`
}

func (p *AvitoPayload) ProgressDocument() json.RawMessage {
	if len(bytes.TrimSpace(p.ConstructionProgress)) > 0 {
		return p.ConstructionProgress
	}
	return p.Development.ConstructionProgress
}

type DomClickDevelopment struct {
	ComplexName          string          `json:"complex_name"`
	Address              string          `json:"address,omitempty"`
	Photos               StringList      `json:"photos,omitempty"`
	Parameters           StringMap       `json:"parameters,omitempty"`
	ConstructionProgress json.RawMessage `json:"construction_progress,omitempty"`
}

// DomClickPayload - запись маркетплейса
type DomClickPayload struct {
	Development          DomClickDevelopment  `json:"development"`
	Latitude             Number               `json:"latitude"`
	Longitude            Number               `json:"longitude"`
	ApartmentTypes       SourceApartmentTypes `json:"apartment_types,omitempty"`
	ConstructionProgress json.RawMessage      `json:"construction_progress,omitempty"`
}

// SourceApartment - квартира/планировка в формате любого из источников
type SourceApartment struct {
	Title            string     `json:"title,omitempty"`
	PlanTitle        string     `json:"plan_title,omitempty"`
	Price            Number     `json:"price"`
	PricePerSquare   string     `json:"pricePerSquare,omitempty"`
	PricePerM2       Number     `json:"price_per_m2"`
	Area             Number     `json:"area"`
	TotalArea        Number     `json:"total_area"`
	Floor            Number     `json:"floor"`
	TotalFloors      Number     `json:"total_floors"`
	URL              string     `json:"url,omitempty"`
	URLPath          string     `json:"urlPath,omitempty"`
	Photo            string     `json:"photo,omitempty"`
	Photos           StringList `json:"photos,omitempty"`
	Image            StringList `json:"image,omitempty"`
	CompletionStatus string     `json:"completion_status,omitempty"`
	CompletionDate   string     `json:"completionDate,omitempty"`
}

// SourceApartmentGroup - одна комнатность источника под его собственным ключом
type SourceApartmentGroup struct {
	Key        string
	Apartments []SourceApartment
}

// SourceApartmentTypes сохраняет порядок ключей документа: при склейке алиасов побеждает первый
type SourceApartmentTypes []SourceApartmentGroup

func (t *SourceApartmentTypes) UnmarshalJSON(b []byte) error {
	*t = nil
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("apartment_types: %w", err)
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("apartment_types: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("apartment_types: %w", err)
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("apartment_types[%s]: %w", key, err)
		}
		apartments, err := decodeApartmentGroup(raw)
		if err != nil {
			return fmt.Errorf("apartment_types[%s]: %w", key, err)
		}
		*t = append(*t, SourceApartmentGroup{Key: key, Apartments: apartments})
	}

	_, err = dec.Token()
	return err
}

func decodeApartmentGroup(raw json.RawMessage) ([]SourceApartment, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var list []SourceApartment
		err := json.Unmarshal(raw, &list)
		return list, err
	case '{':
		var group struct {
			Apartments []SourceApartment `json:"apartments"`
		}
		err := json.Unmarshal(raw, &group)
		return group.Apartments, err
	}
	// числа, null и прочие сводки без квартир
	return nil, nil
}

func (t SourceApartmentTypes) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, group := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(group.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(`:{"apartments":`)
		apartments := group.Apartments
		if apartments == nil {
			apartments = []SourceApartment{}
		}
		body, err := json.Marshal(apartments)
		if err != nil {
			return nil, err
		}
		buf.Write(body)
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeSourceRecord собирает запись из документа хранилища
func DecodeSourceRecord(kind SourceKind, id string, doc []byte, lifecycle SourceLifecycle, normalizedName string) (*SourceRecord, error) {
	rec := &SourceRecord{Kind: kind, ID: id, Lifecycle: lifecycle, NormalizedName: normalizedName}

	var err error
	switch kind {
	case KindDomRF:
		rec.DomRF = &DomRFPayload{}
		err = json.Unmarshal(doc, rec.DomRF)
	case KindAvito:
		rec.Avito = &AvitoPayload{}
		err = json.Unmarshal(doc, rec.Avito)
	case KindDomClick:
		rec.DomClick = &DomClickPayload{}
		err = json.Unmarshal(doc, rec.DomClick)
	default:
		return nil, fmt.Errorf("decode source record %s: unknown kind %q", id, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s record %s: %w", kind, id, err)
	}
	return rec, nil
}

// EncodePayload - обратная операция для хранилищ и тестовых фикстур
func (r *SourceRecord) EncodePayload() ([]byte, error) {
	switch {
	case r.DomRF != nil:
		return json.Marshal(r.DomRF)
	case r.Avito != nil:
		return json.Marshal(r.Avito)
	case r.DomClick != nil:
		return json.Marshal(r.DomClick)
	}
	return nil, fmt.Errorf("source record %s has no payload", r.ID)
}
