package http

import (
	"errors"
	"net/http"
	"strings"

	"atelier/internal/core"
)

var errMissingID = errors.New("missing id")

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// query returns a sanitized query parameter.
func query(r *http.Request, key string) string {
	return sanitizeInput(r.URL.Query().Get(key))
}

// pathID returns the {id} wildcard or a validation error when it is blank.
func pathID(r *http.Request) (string, error) {
	id := sanitizeInput(r.PathValue("id"))
	if id == "" {
		return "", core.Validation("path", errMissingID)
	}
	return id, nil
}
