// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package directory

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/samber/oops"
)

// Config describes how to reach the directory server and where users and
// groups live in it. Constructed once at startup; never mutated afterwards.
type Config struct {
	Host string
	Port int

	// UserBase is the base DN under which user entries are searched
	// (subtree scope).
	UserBase string

	// UsernameAttribute is the attribute holding the login name.
	UsernameAttribute string

	// UserFilter is a free-form filter ANDed with the username equality
	// match, e.g. "(objectClass=inetOrgPerson)".
	UserFilter string

	// GroupBase is the base DN under which group entries are searched.
	GroupBase string

	// GroupMemberAttribute is the attribute in which group entries store
	// member DNs.
	GroupMemberAttribute string
}

// Client performs directory operations against a pooled connection. Every
// operation checks out a connection and releases it before returning;
// connections used for a bind are always released defunct.
type Client struct {
	pool *Pool
	cfg  Config
}

// NewClient creates a Client. The configured user filter is compiled up
// front so a malformed filter fails at startup rather than on the first
// login.
func NewClient(cfg Config, pool *Pool) (*Client, error) {
	if _, err := ldap.CompileFilter(cfg.UserFilter); err != nil {
		return nil, oops.Code("DIR_BAD_USER_FILTER").
			With("filter", cfg.UserFilter).
			Wrap(err)
	}
	return &Client{pool: pool, cfg: cfg}, nil
}

// FindUser searches for the user's entry under the user base. Exactly one
// match yields its DN; zero or multiple matches report found=false, because
// an ambiguous entry cannot be bound safely and is treated the same as an
// unknown user.
func (c *Client) FindUser(_ context.Context, username string) (string, bool, error) {
	conn, err := c.pool.Get()
	if err != nil {
		return "", false, err
	}

	filter := fmt.Sprintf("(&(%s=%s)%s)",
		c.cfg.UsernameAttribute, ldap.EscapeFilter(username), c.cfg.UserFilter)

	result, err := conn.Search(ldap.NewSearchRequest(
		c.cfg.UserBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		filter,
		[]string{"1.1"}, // DN only
		nil,
	))
	if err != nil {
		c.pool.Release(conn, ReleaseDefunct)
		return "", false, oops.Code("DIR_SEARCH_FAILED").
			With("base", c.cfg.UserBase).
			Wrap(err)
	}
	c.pool.Release(conn, ReleaseReuse)

	if len(result.Entries) != 1 {
		return "", false, nil
	}
	return result.Entries[0].DN, true, nil
}

// BindUser attempts to authenticate as dn with the supplied password.
// A wrong password reports (false, nil); any other failure is an error. The
// connection is released defunct unconditionally: even a failed bind attempt
// has left the anonymous state behind.
func (c *Client) BindUser(_ context.Context, dn, password string) (bool, error) {
	// An empty password would be an unauthenticated bind, which the
	// directory treats as anonymous success. Reject it outright.
	if password == "" {
		return false, nil
	}

	conn, err := c.pool.Get()
	if err != nil {
		return false, err
	}

	bindErr := conn.Bind(dn, password)
	c.pool.Release(conn, ReleaseDefunct)

	if bindErr != nil {
		if ldap.IsErrorWithCode(bindErr, ldap.LDAPResultInvalidCredentials) {
			return false, nil
		}
		return false, oops.Code("DIR_BIND_FAILED").
			With("dn", dn).
			Wrap(bindErr)
	}
	return true, nil
}

// FindGroups returns the cn of every group under the group base whose member
// attribute contains the user's DN, in the directory's native result order.
func (c *Client) FindGroups(_ context.Context, userDN string) ([]string, error) {
	conn, err := c.pool.Get()
	if err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("(%s:distinguishedNameMatch:=%s)",
		c.cfg.GroupMemberAttribute, ldap.EscapeFilter(userDN))

	result, err := conn.Search(ldap.NewSearchRequest(
		c.cfg.GroupBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		filter,
		[]string{"cn"},
		nil,
	))
	if err != nil {
		c.pool.Release(conn, ReleaseDefunct)
		return nil, oops.Code("DIR_GROUP_SEARCH_FAILED").
			With("base", c.cfg.GroupBase).
			Wrap(err)
	}
	c.pool.Release(conn, ReleaseReuse)

	groups := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		if cn := entry.GetAttributeValue("cn"); cn != "" {
			groups = append(groups, cn)
		}
	}
	return groups, nil
}
