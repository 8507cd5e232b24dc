// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

// Package directory talks to the external LDAP directory server: it owns the
// connection pool and the search-then-bind and group lookup operations built
// on top of it. Raw connections never leave the package's request lifetime.
package directory

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

// Conn is the subset of *ldap.Conn the pool and client use. The seam exists
// so tests can substitute an in-memory directory.
type Conn interface {
	// Bind authenticates the connection as the given DN.
	Bind(username, password string) error

	// Search executes a search request.
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)

	// IsClosing reports whether the connection is shutting down.
	IsClosing() bool

	// Close tears down the connection.
	Close() error
}

// DialFunc creates a new directory connection.
type DialFunc func() (Conn, error)

// Dialer returns a DialFunc that connects to the configured host and port
// over plain LDAP.
func Dialer(cfg Config) DialFunc {
	url := fmt.Sprintf("ldap://%s:%d", cfg.Host, cfg.Port)
	return func() (Conn, error) {
		conn, err := ldap.DialURL(url)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
