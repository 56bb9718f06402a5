package extractors

import (
	"regexp"
	"strconv"
	"strings"

	"unification-service/internal/core/domain"
)

// roomAliases - замкнутая карта подписей комнатности источников
var roomAliases = map[string]string{
	"Студия": domain.RoomStudio,
	"1 ком.": "1", "1-комн": "1", "1-комн.": "1",
	"2 ком.": "2", "2": "2", "2-комн": "2", "2-комн.": "2",
	"3": "3", "3-комн": "3", "3-комн.": "3",
	"4": "4", "4-комн": "4", "4-комн.": "4", "4-комн.+": "4", "4-комн+": "4",
	"5-к. квартиры": "5", "5-комн": "5", "5-комн.": "5",
}

var leadingRooms = regexp.MustCompile(`^(\d)(?:\s*-?\s*к|\+|\s*$)`)

// CanonicalRoomKey переводит подпись источника в ключ из domain.CanonicalRoomKeys.
// Неизвестные подписи распознаются по ведущему числу или слову "студия",
// иначе возвращается false и группа не попадает в каноническую запись.
func CanonicalRoomKey(label string) (string, bool) {
	if key, ok := roomAliases[label]; ok {
		return key, true
	}
	trimmed := strings.TrimSpace(label)
	if key, ok := roomAliases[trimmed]; ok {
		return key, true
	}
	if domain.IsCanonicalRoomKey(trimmed) {
		return trimmed, true
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "студ") {
		return domain.RoomStudio, true
	}
	if m := leadingRooms.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return "", false
		}
		if n > 5 {
			n = 5
		}
		return strconv.Itoa(n), true
	}
	return "", false
}

// ConvertApartmentTypes переводит группы источника в канонические.
// Группы без квартир пропускаются; при совпадении ключей побеждает первая группа.
func ConvertApartmentTypes(groups domain.SourceApartmentTypes) domain.ApartmentTypes {
	out := domain.ApartmentTypes{}
	for _, group := range groups {
		if len(group.Apartments) == 0 {
			continue
		}
		key, ok := CanonicalRoomKey(group.Key)
		if !ok {
			continue
		}
		if _, taken := out[key]; taken {
			continue
		}
		facets := make([]domain.ApartmentFacet, 0, len(group.Apartments))
		for i, apt := range group.Apartments {
			facets = append(facets, ConvertApartment(apt, group.Key, key, i))
		}
		out[key] = domain.ApartmentGroup{Apartments: facets}
	}
	return out
}

// RoomsSkeleton строит apartment_types из списка комнатностей DomRF с пустыми группами
func RoomsSkeleton(rooms []string) domain.ApartmentTypes {
	out := domain.ApartmentTypes{}
	for _, r := range rooms {
		key, ok := CanonicalRoomKey(r)
		if !ok {
			continue
		}
		if _, taken := out[key]; !taken {
			out[key] = domain.ApartmentGroup{Apartments: []domain.ApartmentFacet{}}
		}
	}
	return out
}
