// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package guest

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendollarbond/murmauth/internal/auth"
	"github.com/tendollarbond/murmauth/internal/observability"
)

// Guest access configuration defaults.
const (
	// DefaultTTL bounds both session tokens and guest identities.
	DefaultTTL = 4 * time.Hour

	// DefaultNamePrefix marks guests in the channel user list.
	DefaultNamePrefix = "[guest] "

	// tokenBytes is the entropy of session tokens: 160 bits.
	tokenBytes = 20

	// passwordDisplayLength is the length guest passwords are truncated to
	// for display. The underlying entropy is 160 bits before truncation.
	passwordDisplayLength = 20
)

// GuestGroup is the group assigned to every guest login so the voice server
// can give guests their own permission set.
const GuestGroup = "guests"

// radix32 matches the lowercase digit+letter alphabet guests see in links
// and passwords.
var radix32 = base32.NewEncoding("0123456789abcdefghijklmnopqrstuv").WithPadding(base32.NoPadding)

// Session records who issued a guest session token. Its lifetime is tracked
// by the session store.
type Session struct {
	IssuedBy string
}

// Identity is a claimed guest login: the owning session token and the bcrypt
// hash of the one-time password. One identity per username while live.
type Identity struct {
	Session      string
	PasswordHash []byte
}

// Claim is the result of a successful guest claim. Password is plaintext and
// is handed out exactly once; it is never retrievable again.
type Claim struct {
	Username string
	Password string
}

// Config tunes the guest manager.
type Config struct {
	// TTL for both session tokens and guest identities.
	// Zero means DefaultTTL.
	TTL time.Duration

	// NamePrefix is prepended to guest display names.
	// Empty means DefaultNamePrefix.
	NamePrefix string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock substitutes the time source, for deterministic expiry in tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager owns the two expiring caches and every guest-flow operation. It is
// safe for concurrent use without external locking.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	sessions   *Store[Session]
	identities *Store[Identity]
}

// NewManager creates a Manager. If logger is nil, slog.Default() is used.
func NewManager(cfg Config, logger *slog.Logger, opts ...Option) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = DefaultNamePrefix
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.sessions = NewStore[Session](cfg.TTL, m.now)
	m.identities = NewStore[Identity](cfg.TTL, m.now)
	return m
}

// IssueSession creates a new guest session token valid for the configured
// TTL and returns it. requestingUser identifies the administrator issuing
// the link and may be empty; it is only logged. Tokens are 160 bits of
// randomness, so no uniqueness check is needed.
func (m *Manager) IssueSession(requestingUser string) (string, error) {
	token, err := randomString(tokenBytes)
	if err != nil {
		return "", oops.Code("GUEST_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	m.sessions.Put(token, Session{IssuedBy: requestingUser})
	m.logger.Info("guest session created", "issued_by", requestingUser)
	observability.RecordGuestSessionIssued()
	return token, nil
}

// ClaimGuest turns a live session token into a guest identity for
// desiredUsername. It returns ErrUsernameTaken while another live identity
// holds the name, and ErrSessionInvalid for unknown or expired tokens. On
// success the returned Claim carries the plaintext password; only its bcrypt
// hash is retained.
func (m *Manager) ClaimGuest(token, desiredUsername string) (Claim, error) {
	if _, taken := m.identities.Get(desiredUsername); taken {
		m.logger.Info("duplicate guest username attempt", "username", desiredUsername)
		observability.RecordGuestClaim("username_taken")
		return Claim{}, ErrUsernameTaken
	}

	if _, ok := m.sessions.Get(token); !ok {
		m.logger.Info("invalid or expired guest link", "username", desiredUsername)
		observability.RecordGuestClaim("session_invalid")
		return Claim{}, ErrSessionInvalid
	}

	password, err := randomString(tokenBytes)
	if err != nil {
		return Claim{}, oops.Code("GUEST_PASSWORD_GENERATE_FAILED").Wrap(err)
	}
	password = password[:passwordDisplayLength]

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Claim{}, oops.Code("GUEST_PASSWORD_HASH_FAILED").Wrap(err)
	}

	if !m.identities.PutIfAbsent(desiredUsername, Identity{Session: token, PasswordHash: hash}) {
		// Lost a race with a concurrent claim for the same name.
		m.logger.Info("duplicate guest username attempt", "username", desiredUsername)
		observability.RecordGuestClaim("username_taken")
		return Claim{}, ErrUsernameTaken
	}

	m.logger.Info("guest login created", "username", desiredUsername)
	observability.RecordGuestClaim("created")
	return Claim{Username: desiredUsername, Password: password}, nil
}

// VerifyGuest checks a guest credential pair. It holds only when the
// identity is live, the password matches its hash, and the identity's parent
// session token has not expired: a guest survives at most as long as the
// session that admitted it.
func (m *Manager) VerifyGuest(username, password string) bool {
	identity, ok := m.identities.Get(username)
	if !ok {
		return false
	}
	if bcrypt.CompareHashAndPassword(identity.PasswordHash, []byte(password)) != nil {
		return false
	}
	_, sessionLive := m.sessions.Get(identity.Session)
	return sessionLive
}

// Name identifies this backend.
func (m *Manager) Name() string { return "guest" }

// Authenticate implements auth.Authenticator: a verified guest is accepted
// with the guests group and a prefixed display name so other users can tell
// guests apart.
func (m *Manager) Authenticate(ctx context.Context, username, password string) auth.Outcome {
	if !m.VerifyGuest(username, password) {
		return auth.Reject()
	}

	m.logger.InfoContext(ctx, "guest login succeeded", "username", username)
	return auth.Accept(auth.UsernameToID(username), []string{GuestGroup}, m.cfg.NamePrefix+username)
}

// randomString returns n bytes of cryptographic randomness encoded in the
// lowercase radix-32 alphabet.
func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return radix32.EncodeToString(buf), nil
}
