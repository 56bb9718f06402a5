package extractors

import (
	"fmt"
	"strconv"
	"strings"

	"unification-service/internal/core/domain"
)

// FacetID - стабильный в пределах записи id квартиры
func FacetID(roomKey string, idx int) string {
	return fmt.Sprintf("%s_%d", roomKey, idx)
}

// ConvertApartment переводит квартиру источника в ApartmentFacet.
// sourceKey - подпись группы в источнике, она же запасной заголовок планировки.
func ConvertApartment(apt domain.SourceApartment, sourceKey, roomKey string, idx int) domain.ApartmentFacet {
	area, hasArea := apartmentArea(apt)

	facet := domain.ApartmentFacet{
		ID:             FacetID(roomKey, idx),
		Title:          apartmentTitle(apt, sourceKey, area, hasArea),
		Price:          FormatPriceNumber(apt.Price),
		PriceValue:     PriceValue(apt.Price),
		PricePerSquare: strings.TrimSpace(apt.PricePerSquare),
		URL:            firstNonEmpty(apt.URL, apt.URLPath),
		Image:          apartmentImages(apt),
		CompletionDate: firstNonEmpty(apt.CompletionDate, apt.CompletionStatus),
	}
	if facet.PricePerSquare == "" {
		facet.PricePerSquare = FormatPricePerSquare(apt.PricePerM2)
	}
	if hasArea {
		a := area
		facet.TotalArea = &a
		facet.Area = formatArea(area)
	}

	if f, ok := apt.Floor.Int(); ok && f > 0 {
		facet.FloorMin, facet.FloorMax = intPtr(f), intPtr(f)
		facet.Floor = strconv.Itoa(f)
	} else if lo, hi, ok := ParseFloorsFromTitle(facet.Title); ok {
		facet.FloorMin, facet.FloorMax = intPtr(lo), intPtr(hi)
		facet.Floor = formatFloors(lo, hi)
	}
	return facet
}

func apartmentArea(apt domain.SourceApartment) (float64, bool) {
	for _, n := range []domain.Number{apt.TotalArea, apt.Area} {
		if n.Valid && n.Value > 0 {
			return n.Value, true
		}
	}
	return AreaFromTitle(apt.Title)
}

// apartmentTitle: готовый заголовок источника или "планировка, 35,5 м², 3/9 эт."
func apartmentTitle(apt domain.SourceApartment, sourceKey string, area float64, hasArea bool) string {
	if t := strings.TrimSpace(apt.Title); t != "" {
		return t
	}
	var parts []string
	if plan := firstNonEmpty(apt.PlanTitle, sourceKey); plan != "" {
		parts = append(parts, plan)
	}
	if hasArea {
		parts = append(parts, formatArea(area)+" м²")
	}
	floor, okFloor := apt.Floor.Int()
	total, okTotal := apt.TotalFloors.Int()
	switch {
	case okFloor && floor > 0 && okTotal && total > 0:
		parts = append(parts, fmt.Sprintf("%d/%d эт.", floor, total))
	case okFloor && floor > 0:
		parts = append(parts, fmt.Sprintf("%d эт.", floor))
	}
	if len(parts) == 0 {
		return "Квартира"
	}
	return strings.Join(parts, ", ")
}

// apartmentImages - фото планировки первым, без повторов
func apartmentImages(apt domain.SourceApartment) []string {
	seen := make(map[string]struct{})
	images := make([]string, 0, 1+len(apt.Image)+len(apt.Photos))
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		images = append(images, u)
	}
	add(apt.Photo)
	for _, u := range apt.Image {
		add(u)
	}
	for _, u := range apt.Photos {
		add(u)
	}
	return images
}

func formatArea(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloors(lo, hi int) string {
	if lo == hi {
		return strconv.Itoa(lo)
	}
	return fmt.Sprintf("%d-%d", lo, hi)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func intPtr(v int) *int {
	return &v
}

// RestoreFacet дополняет facet из частичного обновления полями текущей записи,
// затем доводит недостающее по заголовку
func RestoreFacet(facet *domain.ApartmentFacet, current *domain.ApartmentFacet) {
	if current != nil {
		if facet.ID == "" {
			facet.ID = current.ID
		}
		if facet.URL == "" {
			facet.URL = current.URL
		}
		if facet.Area == "" {
			facet.Area = current.Area
		}
		if facet.Square == "" {
			facet.Square = current.Square
		}
		if facet.Floor == "" {
			facet.Floor = current.Floor
		}
		if facet.TotalArea == nil {
			facet.TotalArea = current.TotalArea
		}
		if facet.PriceValue == nil {
			facet.PriceValue = current.PriceValue
		}
		if facet.FloorMin == nil && facet.FloorMax == nil {
			facet.FloorMin, facet.FloorMax = current.FloorMin, current.FloorMax
		}
	}

	if facet.TotalArea == nil {
		if v, ok := AreaFromTitle(facet.Title); ok {
			facet.TotalArea = &v
		}
	}
	if facet.Area == "" && facet.TotalArea != nil {
		facet.Area = formatArea(*facet.TotalArea)
	}
	if facet.PriceValue == nil && facet.Price != "" {
		facet.PriceValue = PriceValue(domain.NumberFromString(facet.Price))
	}
	FillFloorsFromTitle(facet)
	if facet.Floor == "" && facet.FloorMin != nil && facet.FloorMax != nil {
		facet.Floor = formatFloors(*facet.FloorMin, *facet.FloorMax)
	}
}
