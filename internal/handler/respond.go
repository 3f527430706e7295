// Package handler serves the JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/ourslists/internal/grocery"
	"github.com/dukerupert/ourslists/internal/obligation"
	"github.com/dukerupert/ourslists/internal/project"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v and validates it. On failure it writes a
// 400 response and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			msgs = append(msgs, field+" is required")
			continue
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", field, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// writeServiceError maps domain errors to status codes. Anything unknown is
// logged and answered with 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, obligation.ErrNotFound),
		errors.Is(err, grocery.ErrListNotFound),
		errors.Is(err, grocery.ErrItemNotFound),
		errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, project.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, obligation.ErrTitleRequired),
		errors.Is(err, obligation.ErrInvalidKind),
		errors.Is(err, obligation.ErrInvalidSchedule),
		errors.Is(err, grocery.ErrEmptyTitle),
		errors.Is(err, grocery.ErrNameRequired),
		errors.Is(err, project.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, obligation.ErrNotSnoozable),
		errors.Is(err, obligation.ErrPaused):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

// limitParam reads ?limit=, returning def when absent. Zero and negative
// values mean no limit.
func limitParam(r *http.Request, def int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
