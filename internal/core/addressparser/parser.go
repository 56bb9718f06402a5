// Package addressparser - разбор свободного русского адреса на город, район, улицу и дом
package addressparser

import (
	"regexp"
	"strings"

	"unification-service/internal/core/domain"
)

type marker struct {
	detect *regexp.Regexp
	strip  *regexp.Regexp
}

var (
	cityMarker = marker{
		detect: regexp.MustCompile(`(?i)г\.|город|уфа`),
		strip:  regexp.MustCompile(`(?i)г\.|город`),
	}
	districtMarker = marker{
		detect: regexp.MustCompile(`(?i)район|р-он|р-н`),
		strip:  regexp.MustCompile(`(?i)район|р-он|р-н`),
	}
	streetMarker = marker{
		detect: regexp.MustCompile(`(?i)улица|ул\.|(^|\s)ул\s`),
		strip:  regexp.MustCompile(`(?i)улица|ул\.|(^|\s)ул(\s|$)`),
	}
	houseMarker = marker{
		detect: regexp.MustCompile(`(?i)д\.|дом|строение`),
		strip:  regexp.MustCompile(`(?i)д\.|дом|строение`),
	}

	yo      = strings.NewReplacer("ё", "е", "Ё", "Е")
	spaces  = regexp.MustCompile(`\s+`)
	trimSet = " \t,.;"
)

// Parse делит адрес по запятым и раскладывает сегменты по маркерам.
// Каждая часть берется из первого подходящего сегмента; чего нет - пустая строка.
func Parse(address string) domain.GeoAddress {
	var out domain.GeoAddress
	normalized := yo.Replace(address)
	for _, raw := range strings.Split(normalized, ",") {
		part := strings.TrimSpace(raw)
		if part == "" {
			continue
		}
		switch {
		case out.City == "" && cityMarker.detect.MatchString(part):
			out.City = residue(part, cityMarker)
		case out.District == "" && districtMarker.detect.MatchString(part):
			out.District = residue(part, districtMarker)
		case out.Street == "" && streetMarker.detect.MatchString(part):
			out.Street = TruncateAtSlash(residue(part, streetMarker))
		case out.HouseNumber == "" && houseMarker.detect.MatchString(part):
			out.HouseNumber = residue(part, houseMarker)
		}
	}
	return out
}

func residue(part string, m marker) string {
	s := m.strip.ReplaceAllString(part, " ")
	s = spaces.ReplaceAllString(s, " ")
	return strings.Trim(s, trimSet)
}

// TruncateAtSlash: "Молодежная/Баварская" -> "Молодежная"
func TruncateAtSlash(street string) string {
	if i := strings.Index(street, "/"); i >= 0 {
		return strings.Trim(street[:i], trimSet)
	}
	return street
}

// FormatFull собирает полный адрес: "г. Уфа, р-он Кировский, ул. Ленина, д. 1"
func FormatFull(city, district, street, house string) string {
	var parts []string
	if city != "" {
		parts = append(parts, "г. "+city)
	}
	if district != "" {
		parts = append(parts, "р-он "+district)
	}
	if street != "" {
		parts = append(parts, "ул. "+street)
	}
	if house != "" {
		parts = append(parts, "д. "+house)
	}
	return strings.Join(parts, ", ")
}
