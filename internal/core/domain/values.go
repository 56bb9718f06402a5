package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var numberNoise = strings.NewReplacer(
	" ", "", "\u00a0", "", "\u202f", "", "\u2009", "",
	"₽", "", "руб.", "", "руб", "",
)

// ParseNumber разбирает число из строки источника: "54,77", "5 200 000 ₽", "35.5".
// Возвращает false, если строка не является числом целиком.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(numberNoise.Replace(s))
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Number - числовое поле документа источника. Источники пишут его то числом,
// то строкой с запятой; исходный текст сохраняется в Raw.
type Number struct {
	Raw   string
	Value float64
	Valid bool
}

func NewNumber(v float64) Number {
	return Number{Raw: strconv.FormatFloat(v, 'f', -1, 64), Value: v, Valid: true}
}

// NumberFromString - как если бы поле пришло строкой
func NumberFromString(s string) Number {
	v, ok := ParseNumber(s)
	return Number{Raw: s, Value: v, Valid: ok}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number{}
	s := strings.TrimSpace(string(b))
	switch {
	case s == "" || s == "null":
		return nil
	case s[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*n = NumberFromString(str)
		return nil
	case s[0] == '{' || s[0] == '[' || s == "true" || s == "false":
		n.Raw = s
		return nil
	}
	n.Raw = s
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		n.Value, n.Valid = v, true
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if n.Valid {
		return []byte(strconv.FormatFloat(n.Value, 'f', -1, 64)), nil
	}
	if n.Raw != "" {
		return json.Marshal(n.Raw)
	}
	return []byte("null"), nil
}

func (n Number) IsZero() bool {
	return !n.Valid && n.Raw == ""
}

func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Int возвращает целое значение, если число целое
func (n Number) Int() (int, bool) {
	if !n.Valid || n.Value != math.Trunc(n.Value) {
		return 0, false
	}
	return int(n.Value), true
}

// StringList принимает и строку, и массив (строк, чисел или объектов с url)
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	*l = nil
	s := bytes.TrimSpace(b)
	if len(s) == 0 || string(s) == "null" {
		return nil
	}
	if s[0] != '[' {
		item, err := listItem(s)
		if err != nil {
			return err
		}
		if item != "" {
			*l = StringList{item}
		}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(s, &raw); err != nil {
		return err
	}
	out := make(StringList, 0, len(raw))
	for _, r := range raw {
		item, err := listItem(r)
		if err != nil {
			return err
		}
		if item != "" {
			out = append(out, item)
		}
	}
	*l = out
	return nil
}

func listItem(r json.RawMessage) (string, error) {
	r = bytes.TrimSpace(r)
	if len(r) == 0 || string(r) == "null" {
		return "", nil
	}
	switch r[0] {
	case '"':
		var str string
		err := json.Unmarshal(r, &str)
		return strings.TrimSpace(str), err
	case '{':
		var obj struct {
			URL string `json:"url"`
			Src string `json:"src"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			return "", err
		}
		if obj.URL != "" {
			return obj.URL, nil
		}
		return obj.Src, nil
	default:
		return string(r), nil
	}
}

// StringMap - параметры ЖК. Нестроковые значения приводятся к тексту.
type StringMap map[string]string

func (m *StringMap) UnmarshalJSON(b []byte) error {
	*m = nil
	s := bytes.TrimSpace(b)
	if len(s) == 0 || string(s) == "null" {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(s, &raw); err != nil {
		return fmt.Errorf("parameters: %w", err)
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		switch {
		case len(v) == 0 || string(v) == "null":
			out[k] = ""
		case v[0] == '"':
			var str string
			if err := json.Unmarshal(v, &str); err != nil {
				return err
			}
			out[k] = str
		default:
			out[k] = string(v)
		}
	}
	*m = out
	return nil
}
