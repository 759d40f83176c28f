package algod

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	beaker "github.com/branched-services/go-beaker"
)

// DefaultCacheSize is the number of compile results kept by default.
const DefaultCacheSize = 256

// CachingCompiler remembers compile results by source. Concurrent requests
// for the same source share one call to the wrapped compiler. Failures are
// not cached.
type CachingCompiler struct {
	next   beaker.Compiler
	cache  *lru.Cache[[sha256.Size]byte, *beaker.CompileResult]
	flight singleflight.Group
}

var _ beaker.Compiler = (*CachingCompiler)(nil)

// NewCachingCompiler wraps next with an LRU of size entries. A size below 1
// uses DefaultCacheSize.
func NewCachingCompiler(next beaker.Compiler, size int) (*CachingCompiler, error) {
	if size < 1 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[sha256.Size]byte, *beaker.CompileResult](size)
	if err != nil {
		return nil, fmt.Errorf("algod: create cache: %w", err)
	}
	return &CachingCompiler{next: next, cache: cache}, nil
}

// Compile returns the cached result for source or compiles it.
func (c *CachingCompiler) Compile(ctx context.Context, source string) (*beaker.CompileResult, error) {
	key := sha256.Sum256([]byte(source))
	if res, ok := c.cache.Get(key); ok {
		return copyResult(res), nil
	}

	v, err, _ := c.flight.Do(string(key[:]), func() (any, error) {
		res, err := c.next.Compile(ctx, source)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, copyResult(res))
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return copyResult(v.(*beaker.CompileResult)), nil
}

// Len returns the number of cached results.
func (c *CachingCompiler) Len() int {
	return c.cache.Len()
}

func copyResult(res *beaker.CompileResult) *beaker.CompileResult {
	out := *res
	out.Binary = append([]byte(nil), res.Binary...)
	return &out
}
