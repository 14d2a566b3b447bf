package regcache

import (
	"context"
	"fmt"
)

// Scope identifies one discovery scan: which package was enumerated and
// whether sub-packages were included. It is the cache key.
type Scope struct {
	Package   string
	Recursive bool
}

// String renders the scope as a stable cache key.
func (s Scope) String() string {
	return fmt.Sprintf("%s|recursive=%t", s.Package, s.Recursive)
}

// Store persists the module identifier set a discovery scan produced for a
// scope. Caching is strictly best-effort: implementations must swallow
// every storage failure, reporting a miss from Get and silently dropping a
// Put, so a broken cache can only ever make discovery slower, never wrong.
// Concurrent readers must be safe; concurrent writers of one scope may race
// with last-write-wins.
type Store interface {
	Get(ctx context.Context, scope Scope) (modules []string, ok bool)
	Put(ctx context.Context, scope Scope, modules []string)
}
