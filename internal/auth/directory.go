// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/tendollarbond/murmauth/internal/logging"
)

// DirectoryClient is the subset of the directory layer the authenticator
// needs. The production implementation lives in internal/directory.
type DirectoryClient interface {
	// FindUser resolves a username to its distinguished name. Zero or
	// ambiguous matches report found=false, not an error.
	FindUser(ctx context.Context, username string) (dn string, found bool, err error)

	// BindUser attempts to authenticate as dn with the given password.
	// A wrong password reports (false, nil); anything else that prevents the
	// bind is an error.
	BindUser(ctx context.Context, dn, password string) (ok bool, err error)

	// FindGroups returns the names of the groups dn belongs to, in the
	// directory's native result order.
	FindGroups(ctx context.Context, dn string) ([]string, error)
}

// DirectoryAuthenticator authenticates users against the directory server
// using an anonymous search followed by a bind as the located entry.
type DirectoryAuthenticator struct {
	client DirectoryClient
	logger *slog.Logger
}

// NewDirectoryAuthenticator creates a DirectoryAuthenticator.
// If logger is nil, slog.Default() is used.
func NewDirectoryAuthenticator(client DirectoryClient, logger *slog.Logger) *DirectoryAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryAuthenticator{client: client, logger: logger}
}

// Name identifies this backend.
func (a *DirectoryAuthenticator) Name() string { return "directory" }

// Authenticate runs the search-then-bind flow and enriches a successful bind
// with the user's groups and derived id. Every failure path rejects: unknown
// or ambiguous users, wrong passwords, and directory faults are
// indistinguishable to the caller. Directory faults are logged before being
// folded into the rejection; a successful bind followed by a failed group
// lookup also rejects rather than granting access with groups silently
// dropped.
func (a *DirectoryAuthenticator) Authenticate(ctx context.Context, username, password string) Outcome {
	dn, found, err := a.client.FindUser(ctx, username)
	if err != nil {
		logging.Error(a.logger, "directory user search failed",
			oops.With("username", username).With("operation", "find_user").Wrap(err))
		return Reject()
	}
	if !found {
		a.logger.InfoContext(ctx, "directory rejected credentials", "username", username)
		return Reject()
	}

	ok, err := a.client.BindUser(ctx, dn, password)
	if err != nil {
		logging.Error(a.logger, "directory bind failed",
			oops.With("username", username).With("operation", "bind").Wrap(err))
		return Reject()
	}
	if !ok {
		a.logger.InfoContext(ctx, "directory rejected credentials", "username", username)
		return Reject()
	}

	groups, err := a.client.FindGroups(ctx, dn)
	if err != nil {
		logging.Error(a.logger, "directory group lookup failed",
			oops.With("username", username).With("operation", "find_groups").Wrap(err))
		return Reject()
	}

	a.logger.InfoContext(ctx, "directory login succeeded", "username", username, "groups", len(groups))
	return Accept(UsernameToID(username), groups, "")
}
