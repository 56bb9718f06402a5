package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Document - каноническая запись в виде дерева JSON, для обновлений по точечным путям
type Document map[string]any

// ToDocument переводит запись в дерево через JSON, с сохранением чисел как float64
func ToDocument(v any) (Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return doc, nil
}

// Decode - обратное преобразование в типизированную запись
func (d Document) Decode(out any) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Get читает значение по пути вида "development.parameters.Класс"
func (d Document) Get(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set записывает значение, создавая промежуточные объекты.
// Путь через не-объект - ошибка схемы.
func (d Document) Set(path string, value any) error {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for i, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			m := map[string]any{}
			cur[part] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return Schemaf("set path", "%q is not an object", strings.Join(parts[:i+1], "."))
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// ApplyPaths возвращает копию записи с примененными точечными путями.
// Пути применяются по возрастанию, поэтому родитель всегда раньше потомка.
func ApplyPaths(rec *CanonicalRecord, set map[string]any) (*CanonicalRecord, error) {
	doc, err := ToDocument(rec)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := doc.Set(p, set[p]); err != nil {
			return nil, err
		}
	}

	var out CanonicalRecord
	if err := doc.Decode(&out); err != nil {
		return nil, WrapError(ErrorKindSchemaViolation, "apply paths", err)
	}
	out.ID = rec.ID
	return &out, nil
}
