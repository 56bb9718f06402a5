// Package extractors - чистые функции, достающие из записи источника
// диапазон цен, квартиры, этажи и ход строительства.
package extractors

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"unification-service/internal/core/domain"
)

var (
	priceRangeFull = regexp.MustCompile(`от\s+([\d,.]+)\s+до\s+([\d,.]+)\s+млн`)
	priceRangeFrom = regexp.MustCompile(`от\s+([\d,.]+)\s+млн`)
	priceRangeTo   = regexp.MustCompile(`до\s+([\d,.]+)\s+млн`)
)

// PriceRange - границы в миллионах рублей; nil - границы нет
type PriceRange struct {
	Min *float64
	Max *float64
}

func (r PriceRange) Empty() bool {
	return r.Min == nil && r.Max == nil
}

// ParsePriceRange разбирает "От 6,29 до 14,97 млн ₽". Только "от X" дает (X, X),
// перевернутые границы меняются местами.
func ParsePriceRange(s string) (lo, hi float64, ok bool) {
	lower := strings.ToLower(s)
	if m := priceRangeFull.FindStringSubmatch(lower); m != nil {
		var okLo, okHi bool
		lo, okLo = domain.ParseNumber(m[1])
		hi, okHi = domain.ParseNumber(m[2])
		if !okLo || !okHi {
			return 0, 0, false
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		return lo, hi, true
	}
	if m := priceRangeFrom.FindStringSubmatch(lower); m != nil {
		v, ok := domain.ParseNumber(m[1])
		return v, v, ok
	}
	return 0, 0, false
}

// ParsePriceRangeBounds - как ParsePriceRange, но понимает и "до Y млн"
func ParsePriceRangeBounds(s string) PriceRange {
	if lo, hi, ok := ParsePriceRange(s); ok {
		return PriceRange{Min: &lo, Max: &hi}
	}
	if m := priceRangeTo.FindStringSubmatch(strings.ToLower(s)); m != nil {
		if v, ok := domain.ParseNumber(m[1]); ok {
			return PriceRange{Max: &v}
		}
	}
	return PriceRange{}
}

// FormatPriceRange: "От X до Y млн ₽", "От X млн ₽" или "До Y млн ₽"
func FormatPriceRange(r PriceRange) string {
	switch {
	case r.Min != nil && r.Max != nil:
		lo, hi := *r.Min, *r.Max
		if lo > hi {
			lo, hi = hi, lo
		}
		return "От " + formatMillions(lo) + " до " + formatMillions(hi) + " млн ₽"
	case r.Min != nil:
		return "От " + formatMillions(*r.Min) + " млн ₽"
	case r.Max != nil:
		return "До " + formatMillions(*r.Max) + " млн ₽"
	}
	return ""
}

func formatMillions(v float64) string {
	s := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	return strings.Replace(s, ".", ",", 1)
}

// PriceValue - целая сумма в рублях или nil, если цена не положительное число
func PriceValue(price domain.Number) *int64 {
	if !price.Valid {
		return nil
	}
	v := int64(math.Round(price.Value))
	if v <= 0 {
		return nil
	}
	return &v
}

// FormatPriceNumber: "5 млн ₽", "850 тыс. ₽", "900 ₽". Нечисловая цена выводится как есть.
func FormatPriceNumber(price domain.Number) string {
	if !price.Valid {
		return strings.TrimSpace(price.Raw)
	}
	v := price.Value
	switch {
	case v == 0:
		return ""
	case v >= 1_000_000:
		return strconv.FormatInt(int64(v/1_000_000), 10) + " млн ₽"
	case v >= 1_000:
		return strconv.FormatInt(int64(v/1_000), 10) + " тыс. ₽"
	}
	return strconv.FormatInt(int64(v), 10) + " ₽"
}

// FormatPricePerSquare: "125 000 ₽/м²"
func FormatPricePerSquare(price domain.Number) string {
	if !price.Valid {
		return strings.TrimSpace(price.Raw)
	}
	if price.Value == 0 {
		return ""
	}
	return groupThousands(int64(price.Value)) + " ₽/м²"
}

func groupThousands(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
