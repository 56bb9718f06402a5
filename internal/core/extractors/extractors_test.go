package extractors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unification-service/internal/core/domain"
)

func f64(v float64) *float64 { return &v }

func TestParsePriceRange(t *testing.T) {
	lo, hi, ok := ParsePriceRange("От 6,29 до 14,97 млн ₽")
	require.True(t, ok)
	assert.InDelta(t, 6.29, lo, 1e-9)
	assert.InDelta(t, 14.97, hi, 1e-9)

	lo, hi, ok = ParsePriceRange("от 12.68 до 3.37 млн")
	require.True(t, ok)
	assert.InDelta(t, 3.37, lo, 1e-9, "границы меняются местами")
	assert.InDelta(t, 12.68, hi, 1e-9)

	lo, hi, ok = ParsePriceRange("От 4,5 млн ₽")
	require.True(t, ok)
	assert.Equal(t, lo, hi)

	_, _, ok = ParsePriceRange("цена по запросу")
	assert.False(t, ok)
}

func TestPriceRange_RoundTrip(t *testing.T) {
	for _, r := range [][2]float64{{6.29, 14.97}, {3, 12.5}, {0.95, 1.01}} {
		s := FormatPriceRange(PriceRange{Min: f64(r[0]), Max: f64(r[1])})
		lo, hi, ok := ParsePriceRange(s)
		require.True(t, ok, s)
		assert.InDelta(t, r[0], lo, 1e-2, s)
		assert.InDelta(t, r[1], hi, 1e-2, s)
	}

	assert.Equal(t, "От 6,29 до 14,97 млн ₽", FormatPriceRange(PriceRange{Min: f64(6.29), Max: f64(14.97)}))
	assert.Equal(t, "От 3 млн ₽", FormatPriceRange(PriceRange{Min: f64(3)}))
	assert.Equal(t, "До 9,1 млн ₽", FormatPriceRange(PriceRange{Max: f64(9.1)}))
	assert.Equal(t, "", FormatPriceRange(PriceRange{}))

	bounds := ParsePriceRangeBounds("до 7 млн")
	assert.Nil(t, bounds.Min)
	require.NotNil(t, bounds.Max)
	assert.Equal(t, 7.0, *bounds.Max)
}

func TestPriceFormatting(t *testing.T) {
	assert.Equal(t, "5 млн ₽", FormatPriceNumber(domain.NewNumber(5_200_000)))
	assert.Equal(t, "850 тыс. ₽", FormatPriceNumber(domain.NewNumber(850_000)))
	assert.Equal(t, "900 ₽", FormatPriceNumber(domain.NewNumber(900)))
	assert.Equal(t, "по запросу", FormatPriceNumber(domain.NumberFromString("по запросу")))
	assert.Equal(t, "125 000 ₽/м²", FormatPricePerSquare(domain.NewNumber(125000)))
	assert.Equal(t, "1 234 567 ₽/м²", FormatPricePerSquare(domain.NumberFromString("1 234 567")))
}

func TestPriceValue(t *testing.T) {
	v := PriceValue(domain.NumberFromString("5 200 000 ₽"))
	require.NotNil(t, v)
	assert.Equal(t, int64(5_200_000), *v)

	assert.Nil(t, PriceValue(domain.NumberFromString("договорная")))
	assert.Nil(t, PriceValue(domain.NewNumber(0)))
	assert.Nil(t, PriceValue(domain.NewNumber(-10)))
	assert.Nil(t, PriceValue(domain.Number{}))
}

func TestCanonicalRoomKey(t *testing.T) {
	cases := map[string]string{
		"Студия": "Студия", "1 ком.": "1", "1-комн.": "1", "2 ком.": "2",
		"4-комн.+": "4", "4-комн+": "4", "5-к. квартиры": "5", "5-комн": "5",
		"3": "3", "6-комн.": "5", "студии": "Студия", " 2-комн ": "2",
	}
	for in, want := range cases {
		got, ok := CanonicalRoomKey(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"Свободная планировка", "12 м²", ""} {
		_, ok := CanonicalRoomKey(in)
		assert.False(t, ok, in)
	}
}

func TestConvertApartmentTypes_AliasCollapse(t *testing.T) {
	body := `{
		"Студия": {"apartments": [{"title": "Студия, 24 м², 3/9 эт."}]},
		"1 ком.": {"apartments": [{"plan_title": "1-комн", "total_area": 35.5}, {"plan_title": "1-комн", "total_area": "38,1"}]},
		"2 ком.": {"apartments": [{"total_area": 52}, {"total_area": 54}, {"total_area": 60}]},
		"1-комн": {"apartments": [{"total_area": 99}]},
		"Пентхаус": {"apartments": [{"total_area": 200}]},
		"3-комн.": {"apartments": []}
	}`
	var source domain.SourceApartmentTypes
	require.NoError(t, json.Unmarshal([]byte(body), &source))

	types := ConvertApartmentTypes(source)
	assert.Equal(t, []string{"Студия", "1", "2"}, types.Keys())
	assert.Len(t, types["Студия"].Apartments, 1)
	assert.Len(t, types["1"].Apartments, 2, "первая группа побеждает при совпадении ключей")
	assert.Len(t, types["2"].Apartments, 3)
	for key := range types {
		assert.True(t, domain.IsCanonicalRoomKey(key), key)
	}
	assert.Equal(t, "1_1", types["1"].Apartments[1].ID)
	assert.Equal(t, "38.1", types["1"].Apartments[1].Area)
}

func TestConvertApartment(t *testing.T) {
	apt := domain.SourceApartment{
		PlanTitle:        "2-комн. квартира",
		Price:            domain.NumberFromString("7 450 000"),
		PricePerM2:       domain.NewNumber(132000),
		TotalArea:        domain.NewNumber(56.4),
		Floor:            domain.NewNumber(7),
		TotalFloors:      domain.NewNumber(17),
		URL:              "https://example.org/a/1",
		Photo:            "plan.jpg",
		Photos:           domain.StringList{"plan.jpg", "view.jpg"},
		CompletionStatus: "4 кв. 2026",
	}
	facet := ConvertApartment(apt, "2 ком.", "2", 0)

	assert.Equal(t, "2_0", facet.ID)
	assert.Equal(t, "2-комн. квартира, 56.4 м², 7/17 эт.", facet.Title)
	assert.Equal(t, "7 млн ₽", facet.Price)
	require.NotNil(t, facet.PriceValue)
	assert.Equal(t, int64(7_450_000), *facet.PriceValue)
	assert.Equal(t, "132 000 ₽/м²", facet.PricePerSquare)
	assert.Equal(t, "56.4", facet.Area)
	require.NotNil(t, facet.TotalArea)
	assert.Equal(t, 56.4, *facet.TotalArea)
	assert.Equal(t, 7, *facet.FloorMin)
	assert.Equal(t, 7, *facet.FloorMax)
	assert.Equal(t, "7", facet.Floor)
	assert.Equal(t, []string{"plan.jpg", "view.jpg"}, facet.Image)
	assert.Equal(t, "4 кв. 2026", facet.CompletionDate)

	bare := ConvertApartment(domain.SourceApartment{}, "", "1", 3)
	assert.Equal(t, "Квартира", bare.Title)
	assert.Nil(t, bare.PriceValue)
	assert.Nil(t, bare.TotalArea)
	assert.Nil(t, bare.FloorMin)
	assert.Nil(t, bare.FloorMax)
	assert.Empty(t, bare.Image)
}

func TestConvertApartment_FloorsFromTitle(t *testing.T) {
	facet := ConvertApartment(domain.SourceApartment{Title: "1-комн, 35,16 м², 3-6 этаж"}, "1", "1", 0)
	require.NotNil(t, facet.FloorMin)
	assert.Equal(t, 3, *facet.FloorMin)
	assert.Equal(t, 6, *facet.FloorMax)
	assert.Equal(t, "3-6", facet.Floor)
	require.NotNil(t, facet.TotalArea)
	assert.InDelta(t, 35.16, *facet.TotalArea, 1e-9)
}

func TestParseFloorsFromTitle(t *testing.T) {
	cases := []struct {
		title  string
		lo, hi int
		ok     bool
	}{
		{"14 этаж", 14, 14, true},
		{"2-25 этаж", 2, 25, true},
		{"Студия, 3/17 эт.", 3, 3, true},
		{"2-комн, 9/12 эт.", 9, 12, true},
		{"квартира 5 из 9", 5, 5, true},
		{"14-этажный дом, квартира на 14 этаже", 0, 0, false},
		{"Студия, 24 м²", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tc := range cases {
		lo, hi, ok := ParseFloorsFromTitle(tc.title)
		assert.Equal(t, tc.ok, ok, tc.title)
		assert.Equal(t, tc.lo, lo, tc.title)
		assert.Equal(t, tc.hi, hi, tc.title)
	}
}

func TestRepairLegacyFloors(t *testing.T) {
	legacy := func(title string, lo, hi int) *domain.ApartmentFacet {
		return &domain.ApartmentFacet{Title: title, FloorMin: intPtr(lo), FloorMax: intPtr(hi)}
	}

	f := legacy("1-комн, 40 м², 14 этаж", 1, 14)
	assert.True(t, RepairLegacyFloors(f))
	assert.Equal(t, 14, *f.FloorMin)
	assert.Equal(t, 14, *f.FloorMax)

	f = legacy("1-комн, 40 м², 2-14 этаж", 1, 14)
	assert.False(t, RepairLegacyFloors(f), "настоящий диапазон")
	assert.Equal(t, 1, *f.FloorMin)

	f = legacy("1-14 этаж", 1, 14)
	assert.False(t, RepairLegacyFloors(f))

	f = legacy("9 этаж", 1, 14)
	assert.False(t, RepairLegacyFloors(f), "этаж в заголовке не совпадает с floorMax")

	f = legacy("14 этаж", 2, 14)
	assert.False(t, RepairLegacyFloors(f))

	assert.False(t, RepairLegacyFloors(&domain.ApartmentFacet{Title: "14 этаж"}))

	// этажность дома делает заголовок неоднозначным
	f = legacy("14-этажный дом, квартира на 14 этаже", 1, 14)
	assert.False(t, RepairLegacyFloors(f))
	assert.Equal(t, 1, *f.FloorMin)
	assert.Equal(t, 14, *f.FloorMax)
	_, _, ok := ParseFloorsFromTitle(f.Title)
	assert.False(t, ok)
}

func TestFillFloorsFromTitle(t *testing.T) {
	f := &domain.ApartmentFacet{Title: "5-21 этаж"}
	assert.True(t, FillFloorsFromTitle(f))
	assert.Equal(t, 5, *f.FloorMin)
	assert.Equal(t, 21, *f.FloorMax)
	assert.False(t, FillFloorsFromTitle(f), "уже заполнено")
}

func TestRestoreFacet(t *testing.T) {
	current := &domain.ApartmentFacet{
		ID: "1_0", URL: "u", Area: "35", Square: "35 м²", Floor: "3",
		FloorMin: intPtr(3), FloorMax: intPtr(3), TotalArea: f64(35),
	}
	patch := &domain.ApartmentFacet{Title: "1-комн, 35 м², 3 этаж", Price: "4 100 000"}
	RestoreFacet(patch, current)

	assert.Equal(t, "1_0", patch.ID)
	assert.Equal(t, "u", patch.URL)
	assert.Equal(t, "35 м²", patch.Square)
	assert.Equal(t, 3, *patch.FloorMin)
	require.NotNil(t, patch.PriceValue)
	assert.Equal(t, int64(4_100_000), *patch.PriceValue)

	orphan := &domain.ApartmentFacet{Title: "Студия, 24,5 м², 2-25 этаж"}
	RestoreFacet(orphan, nil)
	require.NotNil(t, orphan.TotalArea)
	assert.InDelta(t, 24.5, *orphan.TotalArea, 1e-9)
	assert.Equal(t, 2, *orphan.FloorMin)
	assert.Equal(t, 25, *orphan.FloorMax)
	assert.Equal(t, "2-25", orphan.Floor)
}

func TestConstructionProgress_Shapes(t *testing.T) {
	list := `[{"stage":"Котлован","date":"2023-01","photos":["a"]},{"stage_number":"5","name":"Каркас","photos":"b"}]`
	progress, ok := ConstructionProgress(json.RawMessage(list))
	require.True(t, ok)
	require.Len(t, progress.ConstructionStages, 2)
	assert.Equal(t, 1, progress.ConstructionStages[0].StageNumber)
	assert.Equal(t, 5, progress.ConstructionStages[1].StageNumber)
	assert.Equal(t, "Каркас", progress.ConstructionStages[1].Stage)
	assert.Equal(t, []string{"b"}, progress.ConstructionStages[1].Photos)

	obj := `{"construction_stages":[{"stage":"Отделка","date":"","photos":[]}]}`
	progress, ok = ConstructionProgress(json.RawMessage(obj))
	require.True(t, ok)
	assert.Equal(t, "Отделка", progress.ConstructionStages[0].Stage)
	assert.Equal(t, 1, progress.ConstructionStages[0].StageNumber)

	photosOnly := `{"photos":["p1","p2"]}`
	progress, ok = ConstructionProgress(json.RawMessage(photosOnly))
	require.True(t, ok)
	require.Len(t, progress.ConstructionStages, 1)
	assert.Equal(t, "Строительство", progress.ConstructionStages[0].Stage)
	assert.Equal(t, "", progress.ConstructionStages[0].Date)
	assert.Equal(t, []string{"p1", "p2"}, progress.ConstructionStages[0].Photos)

	for _, empty := range []string{"", "null", "{}", "[]", `{"construction_stages":[]}`, `"текст"`} {
		_, ok := ConstructionProgress(json.RawMessage(empty))
		assert.False(t, ok, empty)
	}
}

func TestRoomsSkeleton(t *testing.T) {
	types := RoomsSkeleton([]string{"1", "2", "2-комн.", "Котельная"})
	assert.Equal(t, []string{"1", "2"}, types.Keys())
	assert.NotNil(t, types["1"].Apartments)
	assert.Empty(t, types["1"].Apartments)
}
