// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package directory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendollarbond/murmauth/internal/directory"
)

// fakeConn is an in-memory stand-in for an LDAP connection.
type fakeConn struct {
	mu        sync.Mutex
	closed    bool
	bindDN    string
	bindPw    string
	bindCalls int
	bindErr   error
	searchFn  func(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

func (f *fakeConn) Bind(username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindCalls++
	f.bindDN = username
	f.bindPw = password
	return f.bindErr
}

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if f.searchFn == nil {
		return &ldap.SearchResult{}, nil
	}
	return f.searchFn(req)
}

func (f *fakeConn) IsClosing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func entriesResult(dns ...string) *ldap.SearchResult {
	result := &ldap.SearchResult{}
	for _, dn := range dns {
		result.Entries = append(result.Entries, &ldap.Entry{DN: dn})
	}
	return result
}

func testConfig() directory.Config {
	return directory.Config{
		Host:                 "127.0.0.1",
		Port:                 389,
		UserBase:             "ou=users,dc=example,dc=com",
		UsernameAttribute:    "cn",
		UserFilter:           "(objectClass=*)",
		GroupBase:            "ou=groups,dc=example,dc=com",
		GroupMemberAttribute: "member",
	}
}

// newFakePool returns a pool whose dial function hands out conns from make,
// plus a counter of how many were dialed.
func newFakePool(t *testing.T, make func() *fakeConn) (*directory.Pool, *int) {
	t.Helper()
	dials := 0
	pool := directory.NewPool(func() (directory.Conn, error) {
		dials++
		return make(), nil
	}, 1)
	return pool, &dials
}

func TestClient_FindUser(t *testing.T) {
	ctx := context.Background()

	t.Run("single match returns DN", func(t *testing.T) {
		var gotFilter string
		conn := &fakeConn{searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			gotFilter = req.Filter
			return entriesResult("cn=bob,ou=users,dc=example,dc=com"), nil
		}}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		dn, found, err := client.FindUser(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "cn=bob,ou=users,dc=example,dc=com", dn)
		assert.Equal(t, "(&(cn=bob)(objectClass=*))", gotFilter)
	})

	t.Run("zero matches reports absent", func(t *testing.T) {
		conn := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
			return entriesResult(), nil
		}}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		_, found, err := client.FindUser(ctx, "nobody")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("ambiguous matches report absent, not error", func(t *testing.T) {
		conn := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
			return entriesResult("cn=bob,ou=a,dc=example,dc=com", "cn=bob,ou=b,dc=example,dc=com"), nil
		}}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		_, found, err := client.FindUser(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("filter metacharacters in username are escaped", func(t *testing.T) {
		var gotFilter string
		conn := &fakeConn{searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			gotFilter = req.Filter
			return entriesResult(), nil
		}}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		_, _, err = client.FindUser(ctx, "b*b)")
		require.NoError(t, err)
		assert.NotContains(t, gotFilter, "b*b)")
	})

	t.Run("search failure propagates", func(t *testing.T) {
		conn := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
			return nil, errors.New("connection reset")
		}}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		_, _, err = client.FindUser(ctx, "bob")
		assert.Error(t, err)
	})
}

func TestClient_BindUser(t *testing.T) {
	ctx := context.Background()

	t.Run("successful bind", func(t *testing.T) {
		conn := &fakeConn{}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		ok, err := client.BindUser(ctx, "cn=bob,ou=users,dc=example,dc=com", "hunter2")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "cn=bob,ou=users,dc=example,dc=com", conn.bindDN)
	})

	t.Run("invalid credentials is a negative result, not an error", func(t *testing.T) {
		conn := &fakeConn{bindErr: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		ok, err := client.BindUser(ctx, "cn=bob,ou=users,dc=example,dc=com", "wrong")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other bind failures are hard errors", func(t *testing.T) {
		conn := &fakeConn{bindErr: ldap.NewError(ldap.LDAPResultUnavailable, errors.New("server shutting down"))}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		_, err = client.BindUser(ctx, "cn=bob,ou=users,dc=example,dc=com", "hunter2")
		assert.Error(t, err)
	})

	t.Run("empty password rejected without binding", func(t *testing.T) {
		conn := &fakeConn{}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		ok, err := client.BindUser(ctx, "cn=bob,ou=users,dc=example,dc=com", "")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, conn.bindCalls)
	})

	t.Run("bound connection never re-enters the pool", func(t *testing.T) {
		conns := []*fakeConn{}
		pool, dials := newFakePool(t, func() *fakeConn {
			c := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
				return entriesResult("cn=bob,ou=users,dc=example,dc=com"), nil
			}}
			conns = append(conns, c)
			return c
		})
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		// First request: anonymous search, then bind.
		_, found, err := client.FindUser(ctx, "bob")
		require.NoError(t, err)
		require.True(t, found)
		ok, err := client.BindUser(ctx, "cn=bob,ou=users,dc=example,dc=com", "hunter2")
		require.NoError(t, err)
		require.True(t, ok)

		// The bound connection must have been closed out of the pool.
		assert.True(t, conns[0].closed, "connection that performed a bind must be discarded")

		// Second request: the recycled pool must hand out a fresh anonymous
		// connection and the search must still succeed.
		_, found, err = client.FindUser(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 2, *dials, "pool should have dialed a replacement connection")
	})
}

func TestClient_FindGroups(t *testing.T) {
	ctx := context.Background()

	t.Run("collects cn values in directory order", func(t *testing.T) {
		var gotFilter string
		conn := &fakeConn{searchFn: func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
			gotFilter = req.Filter
			return &ldap.SearchResult{Entries: []*ldap.Entry{
				ldap.NewEntry("cn=admins,ou=groups,dc=example,dc=com", map[string][]string{"cn": {"admins"}}),
				ldap.NewEntry("cn=ops,ou=groups,dc=example,dc=com", map[string][]string{"cn": {"ops"}}),
			}}, nil
		}}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		groups, err := client.FindGroups(ctx, "cn=bob,ou=users,dc=example,dc=com")
		require.NoError(t, err)
		assert.Equal(t, []string{"admins", "ops"}, groups)
		assert.Equal(t, "(member:distinguishedNameMatch:=cn=bob,ou=users,dc=example,dc=com)", gotFilter)
	})

	t.Run("no groups yields empty list", func(t *testing.T) {
		conn := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
			return entriesResult(), nil
		}}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		groups, err := client.FindGroups(ctx, "cn=bob,ou=users,dc=example,dc=com")
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("search failure propagates", func(t *testing.T) {
		conn := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
			return nil, errors.New("connection reset")
		}}
		pool, _ := newFakePool(t, func() *fakeConn { return conn })
		client, err := directory.NewClient(testConfig(), pool)
		require.NoError(t, err)

		_, err = client.FindGroups(ctx, "cn=bob,ou=users,dc=example,dc=com")
		assert.Error(t, err)
	})
}

func TestNewClient_RejectsBadFilter(t *testing.T) {
	cfg := testConfig()
	cfg.UserFilter = "(objectClass=*" // unbalanced

	pool, _ := newFakePool(t, func() *fakeConn { return &fakeConn{} })
	_, err := directory.NewClient(cfg, pool)
	assert.Error(t, err)
}
