package utils

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
)

// ErrBadBody is returned by DecodeJSON when the request body is not valid JSON.
var ErrBadBody = errors.New("invalid request body")

// ErrBodyTooLarge is returned by DecodeJSON when the body exceeds the size limit.
var ErrBodyTooLarge = errors.New("request body too large")

// RespondJSON writes payload as JSON with the given status code.
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// RespondData writes the success envelope {status, data}.
func RespondData(w http.ResponseWriter, status int, data interface{}) {
	RespondJSON(w, status, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}

// DecodeJSON decodes the request body into dst. An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrBodyTooLarge
	}
	return ErrBadBody
}
