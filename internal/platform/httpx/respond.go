// Package httpx provides HTTP response utilities for the JSON envelope used by the API.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ranchbook/ranchbook/internal/shared"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success             bool              `json:"success"`
	Data                any               `json:"data,omitempty"`
	LedgerTransactionID string            `json:"ledgerTransactionId,omitempty"`
	AlreadyPosted       bool              `json:"alreadyPosted,omitempty"`
	Message             string            `json:"message,omitempty"`
	Errors              map[string]string `json:"errors,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// Posted writes a success envelope carrying the ledger transaction id.
func Posted(w http.ResponseWriter, data any, ledgerTransactionID uuid.UUID, alreadyPosted bool) {
	env := Envelope{Success: true, Data: data, AlreadyPosted: alreadyPosted}
	if ledgerTransactionID != uuid.Nil {
		env.LedgerTransactionID = ledgerTransactionID.String()
	}
	JSON(w, http.StatusOK, env)
}

// Fail writes a failure envelope.
func Fail(w http.ResponseWriter, status int, message string, fields map[string]string) {
	JSON(w, status, Envelope{Success: false, Message: message, Errors: fields})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.NewValidationError("request body required", nil)
		}
		return shared.NewValidationError("malformed JSON body", map[string]string{"body": err.Error()})
	}
	return nil
}

// Actor returns the request actor or writes 401.
func Actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		Fail(w, http.StatusUnauthorized, "tenant and user required", nil)
		return shared.Actor{}, false
	}
	return actor, true
}

// PathUUID parses a chi URL parameter as a uuid or writes 400.
func PathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		Fail(w, http.StatusBadRequest, "invalid "+name, map[string]string{name: "must be a valid id"})
		return uuid.Nil, false
	}
	return id, true
}
