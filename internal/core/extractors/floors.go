package extractors

import (
	"regexp"
	"strconv"

	"unification-service/internal/core/domain"
)

var (
	floorOfTotal  = regexp.MustCompile(`(\d+)/(\d+)\s*эт`)
	floorRange    = regexp.MustCompile(`(\d+)-(\d+)\s*этаж`)
	floorSingle   = regexp.MustCompile(`(\d+)\s*этаж`)
	floorFromOf   = regexp.MustCompile(`(\d+)\s+из\s+(\d+)`)
	buildingFloor = regexp.MustCompile(`\d+\s*-?\s*этажн`)
	titleArea     = regexp.MustCompile(`(\d+[,.]?\d*)\s*м²`)
)

// ParseFloorsFromTitle достает этажи из заголовка квартиры:
// "3/17 эт" -> (3,3), "2-25 этаж" -> (2,25), "14 этаж" -> (14,14), "5 из 9" -> (5,5).
// Заголовки с этажностью дома ("14-этажный дом") неоднозначны и дают false.
func ParseFloorsFromTitle(title string) (floorMin, floorMax int, ok bool) {
	if title == "" || buildingFloor.MatchString(title) {
		return 0, 0, false
	}

	if m := floorOfTotal.FindStringSubmatch(title); m != nil {
		x, y := atoi(m[1]), atoi(m[2])
		// вторая цифра заметно больше - это "этаж X из Y"
		if y > 2*x {
			return validFloors(x, x)
		}
		return validFloors(x, y)
	}
	if m := floorRange.FindStringSubmatch(title); m != nil {
		return validFloors(atoi(m[1]), atoi(m[2]))
	}
	if m := floorSingle.FindStringSubmatch(title); m != nil {
		x := atoi(m[1])
		return validFloors(x, x)
	}
	if m := floorFromOf.FindStringSubmatch(title); m != nil {
		x := atoi(m[1])
		return validFloors(x, x)
	}
	return 0, 0, false
}

func validFloors(lo, hi int) (int, int, bool) {
	if lo < 1 || hi < 1 {
		return 0, 0, false
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// AreaFromTitle - площадь из заголовка вида "1-комн, 35,16 м², 3/9 эт."
func AreaFromTitle(title string) (float64, bool) {
	m := titleArea.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	v, ok := domain.ParseNumber(m[1])
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// RepairLegacyFloors исправляет старую ошибку миграции, записавшую одиночный
// этаж X как диапазон (1, X). Диапазон "1-X этаж" в заголовке остается как есть,
// как и "-X этаж". Заголовки с этажностью дома не трогаются.
// Возвращает true, если facet изменен.
func RepairLegacyFloors(facet *domain.ApartmentFacet) bool {
	if facet.FloorMin == nil || facet.FloorMax == nil || buildingFloor.MatchString(facet.Title) {
		return false
	}
	floorMax := *facet.FloorMax
	if *facet.FloorMin != 1 || floorMax <= 1 {
		return false
	}
	if m := floorRange.FindStringSubmatch(facet.Title); m != nil {
		if atoi(m[1]) == 1 && atoi(m[2]) == floorMax {
			return false
		}
	}
	loc := floorSingle.FindStringSubmatchIndex(facet.Title)
	if loc == nil {
		return false
	}
	if loc[0] > 0 && facet.Title[loc[0]-1] == '-' {
		return false
	}
	x := atoi(facet.Title[loc[2]:loc[3]])
	if x != floorMax || x <= 1 {
		return false
	}
	facet.FloorMin = &x
	return true
}

// FillFloorsFromTitle заполняет пустые floorMin/floorMax по заголовку
func FillFloorsFromTitle(facet *domain.ApartmentFacet) bool {
	if facet.FloorMin != nil && facet.FloorMax != nil {
		return false
	}
	lo, hi, ok := ParseFloorsFromTitle(facet.Title)
	if !ok {
		return false
	}
	facet.FloorMin, facet.FloorMax = &lo, &hi
	return true
}
