package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind - тег ошибки матчинга, по нему драйверы и REST решают, что показать
type ErrorKind string

const (
	ErrorKindEmptyName                 ErrorKind = "empty_name"
	ErrorKindNoCandidates              ErrorKind = "no_candidates"
	ErrorKindMissingCoordinates        ErrorKind = "missing_coordinates"
	ErrorKindInvalidCoordinates        ErrorKind = "invalid_coordinates"
	ErrorKindSourceNotFound            ErrorKind = "source_not_found"
	ErrorKindGeocoderUnavailable       ErrorKind = "geocoder_unavailable"
	ErrorKindPersistencePartialBackRef ErrorKind = "persistence_partial_backref"
	ErrorKindSchemaViolation           ErrorKind = "schema_violation"
	ErrorKindCanonicalNotFound         ErrorKind = "canonical_not_found"
)

// MatchError несет вид ошибки и детали для вызывающего
type MatchError struct {
	Kind   ErrorKind
	Op     string
	Detail string
	// Fields - структурированные детали, например какие координаты были у каких источников
	Fields map[string]any
	Err    error
}

func (e *MatchError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *MatchError) Unwrap() error { return e.Err }

// Is сравнивает по виду: errors.Is(err, ErrMissingCoordinates)
func (e *MatchError) Is(target error) bool {
	var t *MatchError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Detail == ""
}

var (
	ErrEmptyName                 = &MatchError{Kind: ErrorKindEmptyName}
	ErrNoCandidates              = &MatchError{Kind: ErrorKindNoCandidates}
	ErrMissingCoordinates        = &MatchError{Kind: ErrorKindMissingCoordinates}
	ErrInvalidCoordinates        = &MatchError{Kind: ErrorKindInvalidCoordinates}
	ErrSourceNotFound            = &MatchError{Kind: ErrorKindSourceNotFound}
	ErrGeocoderUnavailable       = &MatchError{Kind: ErrorKindGeocoderUnavailable}
	ErrPersistencePartialBackRef = &MatchError{Kind: ErrorKindPersistencePartialBackRef}
	ErrSchemaViolation           = &MatchError{Kind: ErrorKindSchemaViolation}
	ErrCanonicalNotFound         = &MatchError{Kind: ErrorKindCanonicalNotFound}
)

func NewError(kind ErrorKind, op, detail string) *MatchError {
	return &MatchError{Kind: kind, Op: op, Detail: detail}
}

func WrapError(kind ErrorKind, op string, err error) *MatchError {
	return &MatchError{Kind: kind, Op: op, Err: err}
}

// WithField добавляет деталь и возвращает ту же ошибку
func (e *MatchError) WithField(key string, value any) *MatchError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// KindOf возвращает вид ошибки или пустую строку для инфраструктурных ошибок
func KindOf(err error) ErrorKind {
	var me *MatchError
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}

// Schemaf - короткая запись для отказов в обновлении
func Schemaf(op, format string, args ...any) *MatchError {
	return NewError(ErrorKindSchemaViolation, op, fmt.Sprintf(format, args...))
}
