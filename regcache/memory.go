package regcache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vk/plugreg/ctxlog"
)

// DefaultTTL bounds how long an in-memory entry shadows the durable store.
const DefaultTTL = 10 * time.Minute

// Memory memoizes another Store in process memory, so registries that share
// a discovery scope skip the disk after the first scan. It reads through to
// the wrapped store on a miss and writes through on Put.
type Memory struct {
	next  Store
	ttl   time.Duration
	cache *gocache.Cache
}

// NewMemory wraps next with a TTL-bounded in-memory layer. A non-positive
// ttl selects DefaultTTL.
func NewMemory(next Store, ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		next:  next,
		ttl:   ttl,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Get serves from memory when possible, reading through to the wrapped
// store otherwise.
func (m *Memory) Get(ctx context.Context, scope Scope) ([]string, bool) {
	key := scope.String()
	if v, found := m.cache.Get(key); found {
		modules, ok := v.([]string)
		if !ok {
			// A foreign value under our key means the entry is unusable.
			ctxlog.FromContext(ctx).Debug("Registry memory cache holds unexpected type, treating as miss.", "scope", key)
			m.cache.Delete(key)
		} else {
			return modules, true
		}
	}

	modules, ok := m.next.Get(ctx, scope)
	if ok {
		m.cache.Set(key, modules, m.ttl)
	}
	return modules, ok
}

// Put stores in memory and writes through.
func (m *Memory) Put(ctx context.Context, scope Scope, modules []string) {
	m.cache.Set(scope.String(), modules, m.ttl)
	m.next.Put(ctx, scope, modules)
}
