package addressparser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"unification-service/internal/core/domain"
)

func TestParse(t *testing.T) {
	cases := map[string]domain.GeoAddress{
		"ул. Ленина 1, Уфа": {City: "Уфа", Street: "Ленина 1"},
		"г. Уфа, Кировский район, улица Менделеева, д. 130": {
			City: "Уфа", District: "Кировский", Street: "Менделеева", HouseNumber: "130",
		},
		"Республика Башкортостан, город Стерлитамак, р-н Южный, ул Артема, строение 4": {
			City: "Стерлитамак", District: "Южный", Street: "Артема", HouseNumber: "4",
		},
		"г. Уфа, ул. Молодёжная/Баварская, дом 2": {City: "Уфа", Street: "Молодежная", HouseNumber: "2"},
		"":          {},
		"Башкирия":  {},
	}
	for in, want := range cases {
		assert.Equal(t, want, Parse(in), in)
	}
}

func TestParse_FirstSegmentWins(t *testing.T) {
	got := Parse("г. Уфа, г. Москва")
	assert.Equal(t, "Уфа", got.City)
}

func TestTruncateAtSlash(t *testing.T) {
	assert.Equal(t, "Молодежная", TruncateAtSlash("Молодежная/Баварская"))
	assert.Equal(t, "Ленина", TruncateAtSlash("Ленина"))
}

func TestFormatFull(t *testing.T) {
	assert.Equal(t, "г. Уфа, р-он Кировский, ул. Ленина, д. 1", FormatFull("Уфа", "Кировский", "Ленина", "1"))
	assert.Equal(t, "ул. Ленина", FormatFull("", "", "Ленина", ""))
	assert.Equal(t, "", FormatFull("", "", "", ""))
}
