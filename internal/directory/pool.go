// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package directory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/tendollarbond/murmauth/internal/observability"
)

// DefaultPoolSize is the number of connections WarmUp pre-dials. The pool
// grows past it on demand.
const DefaultPoolSize = 3

// ReleaseMode tells the pool what to do with a returned connection.
type ReleaseMode int

const (
	// ReleaseReuse returns the connection for reuse. Only valid for
	// connections still in the anonymous authentication state.
	ReleaseReuse ReleaseMode = iota

	// ReleaseDefunct discards the connection. Required after any bind
	// attempt: the connection's authentication identity has changed and
	// reusing it would leak one user's bound identity into the next request.
	ReleaseDefunct
)

// Pool is a bounded-but-growable pool of directory connections, safe for
// concurrent checkout and release.
type Pool struct {
	dial    DialFunc
	minIdle int

	mu     sync.Mutex
	idle   []Conn
	open   int
	closed bool
}

// NewPool creates a Pool that dials new connections with dial and keeps up to
// minIdle idle connections around. minIdle <= 0 falls back to
// DefaultPoolSize.
func NewPool(dial DialFunc, minIdle int) *Pool {
	if minIdle <= 0 {
		minIdle = DefaultPoolSize
	}
	return &Pool{dial: dial, minIdle: minIdle}
}

// WarmUp pre-dials the minimum number of connections, retrying with
// exponential backoff until the directory answers or the context expires.
// Called once at startup so an unreachable directory fails the process fast
// instead of failing every authentication slowly.
func (p *Pool) WarmUp(ctx context.Context) error {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(500*time.Millisecond))

	for i := 0; i < p.minIdle; i++ {
		err := retry.Do(ctx, backoff, func(_ context.Context) error {
			conn, dialErr := p.dial()
			if dialErr != nil {
				return retry.RetryableError(dialErr)
			}
			p.put(conn)
			return nil
		})
		if err != nil {
			return oops.Code("DIR_POOL_WARMUP_FAILED").
				With("dialed", i).
				With("wanted", p.minIdle).
				Wrap(err)
		}
	}

	slog.Info("directory pool warmed up", "connections", p.minIdle)
	return nil
}

// Get checks out a connection, reusing an idle one when possible and dialing
// otherwise.
func (p *Pool) Get() (Conn, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, oops.Code("DIR_POOL_CLOSED").Errorf("directory pool is closed")
		}
		if n := len(p.idle); n > 0 {
			conn := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()

			if conn.IsClosing() {
				p.discard(conn)
				continue
			}
			return conn, nil
		}
		p.mu.Unlock()

		conn, err := p.dial()
		if err != nil {
			return nil, oops.Code("DIR_POOL_DIAL_FAILED").Wrap(err)
		}
		p.mu.Lock()
		p.open++
		p.mu.Unlock()
		p.publishGauge()
		return conn, nil
	}
}

// Release returns a connection to the pool. Connections used only for
// anonymous searches are released with ReleaseReuse; connections that
// performed a bind must be released with ReleaseDefunct so the pool closes
// them and dials a fresh anonymous one on the next checkout.
func (p *Pool) Release(conn Conn, mode ReleaseMode) {
	if conn == nil {
		return
	}
	if mode == ReleaseDefunct || conn.IsClosing() {
		p.discard(conn)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.discard(conn)
		return
	}
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
}

// Open reports the number of open connections.
func (p *Pool) Open() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Close discards all idle connections and rejects further checkouts.
// Connections currently checked out are closed when released.
func (p *Pool) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, conn := range idle {
		p.discard(conn)
	}
}

// put adds a freshly dialed connection to the idle list.
func (p *Pool) put(conn Conn) {
	p.mu.Lock()
	p.open++
	p.idle = append(p.idle, conn)
	p.mu.Unlock()
	p.publishGauge()
}

// discard closes a connection and drops it from the open count.
func (p *Pool) discard(conn Conn) {
	if err := conn.Close(); err != nil {
		slog.Debug("error closing directory connection", "error", err)
	}
	p.mu.Lock()
	p.open--
	p.mu.Unlock()
	p.publishGauge()
}

func (p *Pool) publishGauge() {
	observability.SetDirectoryConnections(p.Open())
}
