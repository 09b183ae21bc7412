package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"expense-tracker/internal/dates"
	"expense-tracker/internal/guard"
	"expense-tracker/internal/log"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Error codes returned in the "code" field of error responses.
const (
	CodeMissingFields      = "missing_fields"
	CodeInvalidJSON        = "invalid_json"
	CodeInvalidAmount      = "invalid_amount"
	CodeInvalidDescription = "invalid_description"
	CodeInvalidDate        = "invalid_date"
	CodeInvalidCategory    = "invalid_category"
	CodeInvalidRecurrence  = "invalid_recurrence_flag"
	CodeInvalidStartDate   = "invalid_start_date"
	CodeInvalidEndDate     = "invalid_end_date"
	CodeInvalidFormat      = "invalid_format"
	CodeInvalidUsername    = "invalid_username"
	CodeInvalidPassword    = "invalid_password"
	CodeUsernameExists     = "username_exists"
	CodeUnauthenticated    = "unauthenticated"
	CodeInvalidCredentials = "invalid_credentials"
	CodeNotFound           = "not_found"
	CodeForbidden          = "forbidden"
	CodeInternal           = "internal_error"
)

// apiError is an error with a fixed HTTP status and reason code.
type apiError struct {
	status  int
	code    string
	message string
	fields  []string
}

func (e *apiError) Error() string {
	return e.message
}

func badRequest(code, format string, args ...any) *apiError {
	return &apiError{status: http.StatusBadRequest, code: code, message: fmt.Sprintf(format, args...)}
}

func missingFields(fields []string) *apiError {
	return &apiError{
		status:  http.StatusBadRequest,
		code:    CodeMissingFields,
		message: "missing required fields",
		fields:  fields,
	}
}

var errInvalidCredentials = &apiError{
	status:  http.StatusUnauthorized,
	code:    CodeInvalidCredentials,
	message: "invalid username or password",
}

type errorResponse struct {
	Error          string   `json:"error"`
	Code           string   `json:"code"`
	RequiredFields []string `json:"required_fields,omitempty"`
}

// writeError maps err to a status code and writes the error envelope.
// Unclassified errors become 500 and are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		apiErr = classify(err)
	}

	if apiErr.status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).Error("Request failed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
	if apiErr.status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	writeJSON(w, apiErr.status, errorResponse{
		Error:          apiErr.message,
		Code:           apiErr.code,
		RequiredFields: apiErr.fields,
	})
}

func classify(err error) *apiError {
	switch {
	case errors.Is(err, guard.ErrUnauthenticated):
		return &apiError{status: http.StatusUnauthorized, code: CodeUnauthenticated, message: "missing or invalid access token"}
	case errors.Is(err, guard.ErrForbidden):
		return &apiError{status: http.StatusForbidden, code: CodeForbidden, message: guard.ErrForbidden.Error()}
	case errors.Is(err, guard.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return &apiError{status: http.StatusNotFound, code: CodeNotFound, message: guard.ErrNotFound.Error()}
	case errors.Is(err, storage.ErrUsernameTaken):
		return &apiError{status: http.StatusConflict, code: CodeUsernameExists, message: "username already exists"}
	case errors.Is(err, dates.ErrInvalidDate):
		return &apiError{status: http.StatusBadRequest, code: CodeInvalidDate, message: err.Error()}
	}
	return &apiError{status: http.StatusInternalServerError, code: CodeInternal, message: "internal server error"}
}

// decodeObject reads a JSON object body and returns its raw members.
func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest(CodeInvalidJSON, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, badRequest(CodeInvalidJSON, "request body must be a JSON object")
	}
	if fields == nil {
		return nil, badRequest(CodeInvalidJSON, "request body must be a JSON object")
	}
	return fields, nil
}

// decodeField decodes fields[name] into dst. An absent member leaves dst
// unset; a null or wrongly typed member is rejected with code.
func decodeField[T any](fields map[string]json.RawMessage, name, code string, dst *models.Optional[T]) error {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return badRequest(code, "field %q has the wrong type", name)
	}
	if dst.Null {
		return badRequest(code, "field %q must not be null", name)
	}
	return nil
}

// normalizeDate canonicalizes a request date, reporting failures with code.
func normalizeDate(value, code, name string) (string, error) {
	canonical, err := dates.Normalize(value)
	if err != nil {
		return "", badRequest(code, "invalid %s %q: expected ISO-8601 date or timestamp", name, value)
	}
	return canonical, nil
}

// parseFilter reads start_date, end_date and category from the query.
// Empty values are treated as absent.
func parseFilter(r *http.Request) (models.ExpenseFilter, error) {
	q := r.URL.Query()
	var filter models.ExpenseFilter
	var err error

	if v := q.Get("start_date"); v != "" {
		if filter.StartDate, err = normalizeDate(v, CodeInvalidStartDate, "start_date"); err != nil {
			return filter, err
		}
	}
	if v := q.Get("end_date"); v != "" {
		if filter.EndDate, err = normalizeDate(v, CodeInvalidEndDate, "end_date"); err != nil {
			return filter, err
		}
	}
	filter.Category = q.Get("category")
	return filter, nil
}

// pathID parses the {id} path value. Anything that is not an integer
// cannot name an expense and is reported as not found.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, guard.ErrNotFound
	}
	return id, nil
}
