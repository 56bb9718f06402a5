package domain

import (
	"encoding/json"
	"time"
)

// RoomStudio и числовые ключи - замкнутое множество комнатностей unified_houses
const RoomStudio = "Студия"

var CanonicalRoomKeys = []string{RoomStudio, "1", "2", "3", "4", "5"}

func IsCanonicalRoomKey(key string) bool {
	for _, k := range CanonicalRoomKeys {
		if k == key {
			return true
		}
	}
	return false
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) InRange() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Address - все поля строки, пустая строка означает "нет данных"
type Address struct {
	Full     string `json:"full"`
	City     string `json:"city"`
	District string `json:"district"`
	Street   string `json:"street"`
	House    string `json:"house"`
}

type Development struct {
	Name       string            `json:"name"`
	Address    string            `json:"address"`
	PriceRange string            `json:"price_range"`
	Parameters map[string]string `json:"parameters"`
	Korpuses   []json.RawMessage `json:"korpuses"`
	Photos     []string          `json:"photos"`
}

// ApartmentFacet - квартира в каноническом виде
type ApartmentFacet struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Price          string   `json:"price"`
	PriceValue     *int64   `json:"price_value"`
	PricePerSquare string   `json:"pricePerSquare"`
	Area           string   `json:"area"`
	Square         string   `json:"square,omitempty"`
	TotalArea      *float64 `json:"totalArea"`
	Floor          string   `json:"floor"`
	FloorMin       *int     `json:"floorMin"`
	FloorMax       *int     `json:"floorMax"`
	CompletionDate string   `json:"completionDate"`
	URL            string   `json:"url"`
	Image          []string `json:"image"`
}

type ApartmentGroup struct {
	Apartments []ApartmentFacet `json:"apartments"`
}

// ApartmentTypes - ключи только из CanonicalRoomKeys
type ApartmentTypes map[string]ApartmentGroup

// Keys возвращает ключи в порядке CanonicalRoomKeys
func (t ApartmentTypes) Keys() []string {
	keys := make([]string, 0, len(t))
	for _, k := range CanonicalRoomKeys {
		if _, ok := t[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

type ConstructionStage struct {
	StageNumber int      `json:"stage_number"`
	Stage       string   `json:"stage"`
	Date        string   `json:"date"`
	Photos      []string `json:"photos"`
}

type ConstructionProgress struct {
	ConstructionStages []ConstructionStage `json:"construction_stages"`
}

// SourceIDs - авторитетные ссылки каноники на источники
type SourceIDs struct {
	DomRF    *string `json:"domrf"`
	Avito    *string `json:"avito"`
	DomClick *string `json:"domclick"`
}

func (s SourceIDs) Get(kind SourceKind) string {
	var p *string
	switch kind {
	case KindDomRF:
		p = s.DomRF
	case KindAvito:
		p = s.Avito
	case KindDomClick:
		p = s.DomClick
	}
	if p == nil {
		return ""
	}
	return *p
}

// Set с пустым id очищает ссылку
func (s *SourceIDs) Set(kind SourceKind, id string) {
	var p *string
	if id != "" {
		p = &id
	}
	switch kind {
	case KindDomRF:
		s.DomRF = p
	case KindAvito:
		s.Avito = p
	case KindDomClick:
		s.DomClick = p
	}
}

// Kinds - виды источников с непустой ссылкой, в порядке AllSourceKinds
func (s SourceIDs) Kinds() []SourceKind {
	var out []SourceKind
	for _, k := range AllSourceKinds {
		if s.Get(k) != "" {
			out = append(out, k)
		}
	}
	return out
}

func (s SourceIDs) Empty() bool {
	return len(s.Kinds()) == 0
}

// CanonicalRecord - запись unified_houses
type CanonicalRecord struct {
	ID                   string               `json:"_id"`
	Coordinates          *Coordinates         `json:"coordinates"`
	Address              Address              `json:"address"`
	Development          Development          `json:"development"`
	ApartmentTypes       ApartmentTypes       `json:"apartment_types"`
	ConstructionProgress ConstructionProgress `json:"construction_progress"`
	SourceIDs            SourceIDs            `json:"_source_ids"`

	Source    string `json:"source"`
	CreatedBy string `json:"created_by"`

	IsFeatured        bool       `json:"is_featured"`
	IsFuture          bool       `json:"is_future"`
	Rating            *int       `json:"rating"`
	RatingDescription string     `json:"rating_description"`
	RatingCreatedAt   *time.Time `json:"rating_created_at"`
	RatingUpdatedAt   *time.Time `json:"rating_updated_at"`
	AgentID           *string    `json:"agent_id"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ContentEqual сравнивает содержательные поля, без id и отметок времени
func (c *CanonicalRecord) ContentEqual(other *CanonicalRecord) bool {
	if c == nil || other == nil {
		return c == other
	}
	a, b := *c, *other
	a.ID, b.ID = "", ""
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	a.UpdatedAt, b.UpdatedAt = nil, nil
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}
