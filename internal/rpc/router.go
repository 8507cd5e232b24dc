// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

// Package rpc serves the JSON API the voice server calls to authenticate
// connecting users and resolve usernames.
package rpc

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/tendollarbond/murmauth/internal/auth"
)

// rejectedID is returned in place of a user id when authentication fails.
// The voice server treats any negative id as a rejection.
const rejectedID = -1

// AuthService answers authentication and name-resolution queries.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) auth.Outcome
	NameToID(username string) uint32
}

type authenticateRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`

	// Certificate material is accepted for wire compatibility but plays no
	// part in the decision.
	Certificates []string `json:"certificates,omitempty"`
	CertHash     string   `json:"cert_hash,omitempty"`
	CertStrong   bool     `json:"cert_strong,omitempty"`
}

type authenticateResponse struct {
	ID          int64    `json:"id"`
	Groups      []string `json:"groups,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
}

type nameToIDRequest struct {
	Name string `json:"name"`
}

type nameToIDResponse struct {
	ID int64 `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the API router around the given authentication service.
func NewRouter(svc AuthService) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/authenticate", handleAuthenticate(svc))
		r.Post("/name-to-id", handleNameToID(svc))

		// Lookups that need a user database behind them. There is none;
		// the voice server falls back to its own records.
		r.Post("/id-to-name", handleNotAvailable)
		r.Post("/id-to-texture", handleNotAvailable)
		r.Post("/user-info", handleNotAvailable)
	})

	return r
}

func handleAuthenticate(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authenticateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
			return
		}

		outcome := svc.Authenticate(r.Context(), req.Name, req.Password)
		if !outcome.Authenticated {
			writeJSON(w, http.StatusOK, authenticateResponse{ID: rejectedID})
			return
		}

		writeJSON(w, http.StatusOK, authenticateResponse{
			ID:          int64(outcome.ID),
			Groups:      outcome.Groups,
			DisplayName: outcome.DisplayName,
		})
	}
}

func handleNameToID(svc AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nameToIDRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
			return
		}

		writeJSON(w, http.StatusOK, nameToIDResponse{ID: int64(svc.NameToID(req.Name))})
	}
}

func handleNotAvailable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "not available"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

// requestID tags every request with an identifier so log lines from a single
// authentication attempt can be correlated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = ulid.Make().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
