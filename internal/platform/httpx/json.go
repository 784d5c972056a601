package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes bounds request bodies; basket payloads stay well below it.
const maxBodyBytes = 1 << 20

// ErrEmptyBody is returned when a JSON body is required but absent.
var ErrEmptyBody = errors.New("httpx: request body is empty")

// DecodeJSON decodes the request body into dst, rejecting unknown fields and trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil {
		return ErrEmptyBody
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return fmt.Errorf("httpx: decode body: %w", err)
	}
	if decoder.More() {
		return errors.New("httpx: request body must contain a single JSON object")
	}
	return nil
}

// WriteJSON encodes payload with the given status and echoes the estimate identifier header.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	stampEstimate(ctx, w)
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
