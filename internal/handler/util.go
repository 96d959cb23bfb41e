package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a service error onto its HTTP status and writes the
// message. Internal errors get a generic message so no storage or provider
// detail leaks to clients.
func writeError(w http.ResponseWriter, err error) {
	code := errcode.CodeOf(err)
	message := errcode.MessageOf(err)
	if code == errcode.CodeInternal {
		message = "internal error"
	}
	writeJSON(w, errcode.HTTPStatus(code), map[string]string{
		"error": message,
		"code":  string(code),
	})
}

// writeBadRequest writes a plain 400 with the given message.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": message,
		"code":  string(errcode.CodeInvalidArgument),
	})
}

func queryInt(r *http.Request, key string) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 0
}
