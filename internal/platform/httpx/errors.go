// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by every domain package.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrBadRequest = errors.New("bad request")
)

// Mapping binds a domain error to an HTTP status and problem title.
type Mapping struct {
	Err    error
	Status int
	Title  string
}

var defaultMappings = []Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
	{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrBadRequest, Status: http.StatusBadRequest, Title: "Bad Request"},
}

// RespondError maps err to an RFC7807 response. Domain mappings are checked
// before the defaults; unknown errors become 500 without leaking detail.
func RespondError(w http.ResponseWriter, err error, mappings ...Mapping) {
	status, title, ok := Classify(err, mappings...)
	if !ok {
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	Problem(w, status, title, err.Error())
}

// Classify resolves the status for err without writing a response.
func Classify(err error, mappings ...Mapping) (int, string, bool) {
	for _, set := range [][]Mapping{mappings, defaultMappings} {
		for _, m := range set {
			if errors.Is(err, m.Err) {
				return m.Status, m.Title, true
			}
		}
	}
	return http.StatusInternalServerError, "Internal Error", false
}
