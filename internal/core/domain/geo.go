package domain

import (
	"fmt"
	"strings"

	"github.com/mmcloughlin/geohash"
	"github.com/umahmood/haversine"
)

// GeoAddress - результат обратного геокодирования. Пустая строка - поля нет.
type GeoAddress struct {
	Full        string `json:"full,omitempty"`
	City        string `json:"city,omitempty"`
	District    string `json:"district,omitempty"`
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
}

func (g GeoAddress) Empty() bool {
	return g == GeoAddress{}
}

// ParseCoordinatePair разбирает пару координат, пришедшую от оператора.
// Обе пустые - координат нет (nil, nil); заполнена одна или не число - InvalidCoordinates.
func ParseCoordinatePair(lat, lon string) (*Coordinates, error) {
	lat, lon = strings.TrimSpace(lat), strings.TrimSpace(lon)
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, NewError(ErrorKindInvalidCoordinates, "parse coordinates", "latitude and longitude must be provided together").
			WithField("latitude", lat).WithField("longitude", lon)
	}
	la, okLat := ParseNumber(lat)
	lo, okLon := ParseNumber(lon)
	if !okLat || !okLon {
		return nil, NewError(ErrorKindInvalidCoordinates, "parse coordinates", fmt.Sprintf("cannot parse %q, %q as floats", lat, lon)).
			WithField("latitude", lat).WithField("longitude", lon)
	}
	c := Coordinates{Lat: la, Lon: lo}
	if !c.InRange() {
		return nil, NewError(ErrorKindInvalidCoordinates, "parse coordinates", fmt.Sprintf("(%v, %v) out of range", la, lo))
	}
	return &c, nil
}

// DistanceMeters - расстояние по большому кругу
func DistanceMeters(a, b Coordinates) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a.Lat, Lon: a.Lon},
		haversine.Coord{Lat: b.Lat, Lon: b.Lon},
	)
	return km * 1000
}

const (
	geohashPrecision    = 7
	nearbyCellPrecision = 5
)

// Geohash - ячейка каноники в хранилище, точность 7 (~150 м)
func Geohash(c Coordinates) string {
	return geohash.Encode(c.Lat, c.Lon)[:geohashPrecision]
}

// NearbyCells - ячейка точности 5 (~5 км) и восемь соседних; поиск "рядом" идет по префиксам
func NearbyCells(c Coordinates) []string {
	cell := geohash.Encode(c.Lat, c.Lon)[:nearbyCellPrecision]
	return append([]string{cell}, geohash.Neighbors(cell)...)
}
