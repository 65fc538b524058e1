// Package dnscache provides a process-wide DNS resolution cache for
// dialing replica addresses, ported from eventql's DNSCache
// (util/net/dnscache.h): one mutex-guarded map from address string to
// resolved address.
//
// Unlike the original, entries here carry a TTL rather than being
// cached forever, bounding how long a stale resolved address can linger
// in a long-running process (see DESIGN.md).
package dnscache

import (
	"net"
	"sync"
	"time"
)

const defaultTTL = 5 * time.Minute

type entry struct {
	addr    string
	expires time.Time
}

// Cache resolves and caches the first IP a hostname resolves to, keyed
// by the original "host:port" string.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
	lookup  func(host string) ([]string, error)
}

var process *Cache

// Init installs the process-wide Cache, replacing any previously
// installed one. Call once at startup; Resolve panics if Init was never
// called, the same fail-fast behavior the source's global gave callers
// that forgot to initialize it.
func Init(ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	process = newCache(ttl)
}

func newCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
		lookup:  net.LookupHost,
	}
}

// Resolve returns a's host resolved to an IP, with a's original port
// reattached, using the process-wide Cache.
func Resolve(addr string) (string, error) {
	if process == nil {
		panic("dnscache: Init was never called")
	}
	return process.Resolve(addr)
}

// Resolve implements the same resolve-and-cache behavior as the package
// function Resolve, scoped to one Cache instance. Tests construct their
// own Cache via newCache to avoid sharing the process-wide singleton.
func (c *Cache) Resolve(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	if e, found := c.entries[addr]; found && c.now().Before(e.expires) {
		c.mu.Unlock()
		return net.JoinHostPort(e.addr, port), nil
	}
	c.mu.Unlock()

	ips, err := c.lookup(host)
	if err != nil {
		return "", err
	}
	if len(ips) == 0 {
		return "", &net.DNSError{Err: "no such host", Name: host}
	}

	c.mu.Lock()
	c.entries[addr] = entry{addr: ips[0], expires: c.now().Add(c.ttl)}
	c.mu.Unlock()

	return net.JoinHostPort(ips[0], port), nil
}
