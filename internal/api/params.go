package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

var errBadID = errors.New("invalid id")

// idParam reads a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", errBadID, name)
	}
	return id, nil
}

// withID parses the {id} parameter or answers 400.
func withID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := idParam(r, "id")
	if err != nil {
		writeBadRequest(w, err.Error())
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON body or answers 400.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// wantHistory reads the ?history= flag.
func wantHistory(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("history")) //nolint:errcheck // absent or invalid means false
	return v
}

// listResponse is the envelope of list endpoints.
func listResponse(key string, items any, count int) map[string]any {
	return map[string]any{key: items, "count": count}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
