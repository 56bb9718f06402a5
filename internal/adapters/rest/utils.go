package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"unification-service/internal/core/domain"
)

// WriteJSONError отправляет JSON-ответ с полем "error" и заданным статусом
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeErrorBody(w, statusCode, errorResponse{Error: message})
}

// WriteDomainError выбирает статус по виду ошибки матчинга и добавляет error_type
func WriteDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	body := errorResponse{Error: err.Error(), ErrorType: string(kind)}

	var me *domain.MatchError
	if errors.As(err, &me) && len(me.Fields) > 0 {
		body.Details = me.Fields
	}
	writeErrorBody(w, statusForKind(kind), body)
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrorKindSchemaViolation,
		domain.ErrorKindInvalidCoordinates,
		domain.ErrorKindMissingCoordinates,
		domain.ErrorKindEmptyName:
		return http.StatusBadRequest
	case domain.ErrorKindSourceNotFound, domain.ErrorKindCanonicalNotFound:
		return http.StatusNotFound
	case domain.ErrorKindNoCandidates:
		return http.StatusUnprocessableEntity
	case domain.ErrorKindGeocoderUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// RespondWithJSON отправляет JSON-ответ
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Failed to marshal JSON response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func GetLimitOrDefault(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil // use case подставит значение по умолчанию
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid limit %q", limitStr)
	}
	return limit, nil
}

// parseNear разбирает "lat,lon"; десятичная запятая внутри чисел не поддерживается, разделитель - запятая
func parseNear(raw string) (lat, lon float64, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("near must be \"lat,lon\", got %q", raw)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid latitude %q", parts[0])
	}
	if lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return 0, 0, fmt.Errorf("invalid longitude %q", parts[1])
	}
	return lat, lon, nil
}

// decodeJSON читает тело запроса и проверяет теги validate
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}
