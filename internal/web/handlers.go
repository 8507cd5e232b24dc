// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

// Package web serves the guest access flow: administrators issue shareable
// session links and guests exchange them for one-time credentials.
package web

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/tendollarbond/murmauth/internal/guest"
	"github.com/tendollarbond/murmauth/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

// SessionService issues guest session tokens and turns them into guest
// identities.
type SessionService interface {
	IssueSession(requestingUser string) (string, error)
	ClaimGuest(token, desiredUsername string) (guest.Claim, error)
}

// Handler renders the guest web flow.
type Handler struct {
	svc        SessionService
	publicHost string
	templates  *template.Template
	logger     *slog.Logger
}

// NewHandler builds the web handler. publicHost is the voice-server host
// rendered into guest connection links.
func NewHandler(svc SessionService, publicHost string, logger *slog.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, oops.Code("WEB_TEMPLATES_FAILED").Wrap(err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		svc:        svc,
		publicHost: publicHost,
		templates:  tmpl,
		logger:     logger,
	}, nil
}

// Routes returns the web flow router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/guest-sessions/new", http.StatusSeeOther)
	})
	r.Get("/guest-sessions/new", h.handleNewSessionForm)
	r.Post("/guest-sessions", h.handleCreateSession)
	r.Get("/guest-sessions/{token}", h.handleSessionPage)
	r.Post("/guest-claims", h.handleClaim)

	return r
}

type sessionPage struct {
	Token    string
	ShareURL string
	Alert    string
}

type claimPage struct {
	Username   string
	Password   string
	ConnectURL string
}

func (h *Handler) handleNewSessionForm(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, "new_session.html", nil)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// The authenticating reverse proxy identifies the admin; the form field
	// is only a fallback for deployments without one.
	issuedBy := r.Header.Get("X-Remote-User")
	if issuedBy == "" {
		issuedBy = r.FormValue("issued_by")
	}

	token, err := h.svc.IssueSession(issuedBy)
	if err != nil {
		logging.Error(h.logger, "guest session issue failed", err)
		http.Error(w, "could not create a guest session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/guest-sessions/"+token, http.StatusSeeOther)
}

func (h *Handler) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.render(w, http.StatusOK, "session.html", sessionPage{
		Token:    token,
		ShareURL: shareURL(r, token),
	})
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("session")
	username := r.FormValue("username")

	if username == "" {
		h.render(w, http.StatusUnprocessableEntity, "session.html", sessionPage{
			Token:    token,
			ShareURL: shareURL(r, token),
			Alert:    "Pick a username first.",
		})
		return
	}

	claim, err := h.svc.ClaimGuest(token, username)
	switch {
	case errors.Is(err, guest.ErrUsernameTaken):
		h.render(w, http.StatusConflict, "session.html", sessionPage{
			Token:    token,
			ShareURL: shareURL(r, token),
			Alert:    "That guest name is already in use. Pick another one.",
		})
		return
	case errors.Is(err, guest.ErrSessionInvalid):
		h.render(w, http.StatusGone, "session.html", sessionPage{
			Token:    token,
			ShareURL: shareURL(r, token),
			Alert:    "This guest link is invalid or has expired. Ask for a new one.",
		})
		return
	case err != nil:
		logging.Error(h.logger, "guest claim failed", err)
		http.Error(w, "could not create guest access", http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, "claim.html", claimPage{
		Username:   claim.Username,
		Password:   claim.Password,
		ConnectURL: connectURL(h.publicHost, claim.Username, claim.Password),
	})
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		logging.Error(h.logger, "template render failed", err)
	}
}

// shareURL reconstructs the absolute URL of a session page from the incoming
// request so the admin can copy it straight off the page.
func shareURL(r *http.Request, token string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/guest-sessions/" + token
}

// connectURL builds a mumble:// link carrying the one-time credentials.
func connectURL(host, username, password string) string {
	u := url.URL{
		Scheme: "mumble",
		User:   url.UserPassword(username, password),
		Host:   host,
		Path:   "/",
	}
	return u.String()
}
