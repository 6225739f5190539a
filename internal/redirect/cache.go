package redirect

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tlsgatedev/tlsgate/internal/pipeline"
)

// cachedDecision is the memoized shape of a Decision. Responses are
// per-call values that get consumed on resolution, so the cache stores
// the ingredients and rebuilds a fresh response per hit.
type cachedDecision struct {
	intercept bool
	status    int
	location  string
}

// CachingRedirector memoizes decisions of a wrapped policy in an LRU
// cache. It only suits policies whose decision is a pure function of the
// request scheme, forwarded proto, path, and query, and that do not rely
// on mutating the request: a cached continue skips the inner policy
// entirely.
type CachingRedirector struct {
	inner Redirector
	cache *lru.Cache[string, cachedDecision]
}

// Compile-time assertion that CachingRedirector implements Redirector.
var _ Redirector = (*CachingRedirector)(nil)

// NewCachingRedirector wraps inner with an LRU of the given size.
func NewCachingRedirector(inner Redirector, size int) (*CachingRedirector, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, cachedDecision](size)
	if err != nil {
		return nil, fmt.Errorf("redirect: creating LRU: %w", err)
	}
	return &CachingRedirector{inner: inner, cache: cache}, nil
}

// Redirect implements the Redirector interface.
func (c *CachingRedirector) Redirect(req *pipeline.Request) Decision {
	key := decisionKey(req)

	if d, ok := c.cache.Get(key); ok {
		if !d.intercept {
			return Continue()
		}
		resp := pipeline.NewResponse(d.status)
		resp.Header.Set("Location", d.location)
		return Intercept(resp)
	}

	d := c.inner.Redirect(req)
	entry := cachedDecision{intercept: d.Intercepted()}
	if d.Intercepted() {
		entry.status = d.Response().StatusCode
		entry.location = d.Response().Header.Get("Location")
	}
	c.cache.Add(key, entry)
	return d
}

// Len returns the number of memoized decisions.
func (c *CachingRedirector) Len() int {
	return c.cache.Len()
}

// decisionKey builds the cache key from every request attribute the
// shipped policies inspect.
func decisionKey(req *pipeline.Request) string {
	var b strings.Builder
	b.WriteString(req.Scheme())
	b.WriteByte(0)
	b.WriteString(req.Header.Get(ForwardedProtoHeader))
	b.WriteByte(0)
	if req.URL != nil {
		b.WriteString(req.URL.Path)
		b.WriteByte(0)
		b.WriteString(req.URL.RawQuery)
	}
	return b.String()
}
